// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HealthStatus is the body served by the health endpoint.
type HealthStatus struct {
	Status      string         `json:"status"`
	Connections int            `json:"connections"`
	Transports  map[string]int `json:"transports"`
}

// WebSocketHandler upgrades the request and registers the connection with
// the relay, which starts its receive loop.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := s.ordinal.Add(1)
	t := newWSTransport(conn, r.RemoteAddr, s.cfg.BufferSize)
	s.start(newConnection(id, t, s.cfg.WriteTimeout))
}

// HealthHandler reports the number of live connections per transport.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{
		Status:     "ok",
		Transports: map[string]int{TransportTCP: 0, TransportWebSocket: 0},
	}
	s.registry.ForEach(func(c *Connection) {
		status.Connections++
		status.Transports[c.Transport()]++
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("Error writing health response", "error", err)
	}
}

// RootHandler returns a plain text banner.
func RootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Method not allowed. Only GET requests are accepted.", http.StatusMethodNotAllowed)
}

// TestPageHandler serves an HTML page that connects to the WebSocket bridge,
// sends raw text and shows everything the relay broadcasts.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head><title>Relay</title></head>
<body>
<p>Send <code>get time</code> for the server time or <code>exit</code> to leave.</p>
<form id="f"><input id="in" autocomplete="off"> <button>Send</button></form>
<pre id="log"></pre>
<script>
const log = document.getElementById('log');
const input = document.getElementById('in');
const ws = new WebSocket('ws://' + location.host + '/ws');
const show = (text) => { log.textContent += text + '\n'; };
ws.onmessage = (e) => show(e.data);
ws.onclose = () => show('[closed]');
document.getElementById('f').onsubmit = (e) => {
    e.preventDefault();
    if (input.value && ws.readyState === WebSocket.OPEN) {
        ws.send(input.value);
        input.value = '';
    }
};
</script>
</body>
</html>`
