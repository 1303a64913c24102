// Package server implements the HTTP and WebSocket side of roomchat.
//
// A Hub runs one event loop that owns every connection and drives the room
// session protocol from package chat. Clients speak JSON frames (see Frame);
// the files are split by concern: configuration, hub, clients, wire codec,
// routing, metrics and HTTP handlers.
package server
