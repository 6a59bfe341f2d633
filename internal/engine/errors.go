package engine

import (
	"errors"
	"fmt"
)

// DecodeError reports a well-formed engine document that is missing a field
// the caller cannot proceed without. Sparse-but-optional content never
// produces a DecodeError; decoding fills what is present.
type DecodeError struct {
	Doc   string
	Field string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: missing required %s", e.Doc, e.Field)
}

// IsDecodeError reports whether err is a protocol mismatch from the codec.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
