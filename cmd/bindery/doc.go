// Command bindery is the CLI front end for the bindery daemon. It talks to
// binderyd over a Unix socket and renders jobs, scripts, voices, and engine
// state for the terminal.
package main
