// Package server implements the relay core: a TCP acceptor, one receive
// loop per connection, a lock-protected registry of live connections, and
// a dispatcher that fans every text payload out to all of them.
//
// Two phrases are answered by the relay instead of being relayed: any read
// containing "get time" (any case) is answered with the local time of day,
// and a read that is exactly "exit" (any case) closes the sender. Reads are
// undelimited; a message is whatever one read returns.
//
// The same registry is optionally fed by a WebSocket bridge so browser
// clients and raw TCP clients share one conversation.
package server
