// Package transport carries gym protocol messages over a TCP connection.
//
// Requests are single JSON lines terminated by "\r\n". Replies are terminated
// by "\r\n\r\n" and, once the peer has been asked for a compression level
// above zero, their bodies are zlib streams that Conn inflates before
// returning them. Servers send nothing at all for one-way control messages,
// so callers decide per request whether a reply must be read.
//
// The protocol is strictly request/response without pipelining. A Conn is
// meant to be owned by exactly one session; it serialises its own reads and
// writes but does not re-order them.
package transport
