// Command binderyd runs the bindery daemon: it maintains the local job list,
// polls the conversion engine, downloads results, and answers CLI requests
// over a Unix socket.
package main
