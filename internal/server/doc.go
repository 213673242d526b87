// Package server implements the HTTP and WebSocket gateway in front of the
// chat hub.
//
// The implementation is organized into specialized files for configuration,
// clients, origin checks, rate limiting, routing, and HTTP handlers. Room
// state itself lives in package chat; this package only moves frames
// between sockets and the hub.
package server
