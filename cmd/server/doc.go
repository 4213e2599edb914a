// Command server runs the text relay.
//
// Every client connected over TCP (and, with -ws-addr, over WebSocket)
// receives whatever any client sends. "get time" is answered with the
// server's time of day and "exit" disconnects the sender.
//
//	go run ./cmd/server -addr :8080 -ws-addr :8081
//
// Configuration is read from RELAY_* environment variables first; flags
// override them. Press Enter or send SIGINT to stop.
package main
