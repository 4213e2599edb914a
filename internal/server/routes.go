// Package server wires HTTP handlers into a gorilla/mux router for the
// WebSocket bridge.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns the router for the WebSocket bridge.
// It sets up handlers for the banner, health check, WebSocket endpoint, and test page.
func SetupRoutes(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	r.HandleFunc("/", RootHandler).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	return r
}
