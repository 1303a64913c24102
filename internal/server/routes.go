// Package server wires HTTP handlers into a ServeMux for the roomchat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/roomchat/internal/auth"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
func SetupRoutes(hub *Hub, authn auth.Authenticator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle("/ws", NewWebSocketHandler(hub, authn))
	mux.HandleFunc("/test", TestPageHandler)
	mux.Handle("/metrics", hub.Metrics().Handler())
	return mux
}
