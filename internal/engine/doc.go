// Package engine implements the wire protocol of the document-conversion
// engine: the XML codec for scripts, jobs, voices, datatypes, and properties,
// and the HTTP client that drives the engine's webservice endpoints.
//
// Decoding is schema-tolerant. Optional elements and attributes that are
// absent produce zero values; only fields a caller cannot proceed without
// produce a DecodeError. The absence of an <alive> document is itself the
// offline signal, never an error.
package engine
