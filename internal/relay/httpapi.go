package relay

import (
	"net/http"
	"strings"

	jsoncodec "github.com/visiona/vlmrelay/internal/relay/jsoncodec"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
)

// serviceInfo is the object served at the root path.
type serviceInfo struct {
	Service           string `json:"service"`
	Description       string `json:"description"`
	WebSocketEndpoint string `json:"websocket_endpoint"`
	HealthCheck       string `json:"health_check"`
	Statistics        string `json:"statistics"`
}

func (s *Service) registerStatusHandlers() {
	port := s.Conf.HTTPPort
	s.RegisterHTTPHandler(port, "/{$}", http.HandlerFunc(s.handleRoot))
	s.RegisterHTTPHandler(port, "/health", http.HandlerFunc(s.handleHealth))
	s.RegisterHTTPHandler(port, "/stats", http.HandlerFunc(s.handleStats))
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, serviceInfo{
		Service:           ServiceName,
		Description:       "WebSocket streaming of VLM results from DeepStream",
		WebSocketEndpoint: "/ws",
		HealthCheck:       "/health",
		Statistics:        "/stats",
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.Health())
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.Stats())
}

func (s *Service) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")

	if len(s.Conf.CORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if allowed := s.getAllowedCORSOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, v); err != nil {
		s.Logger.Error("failed to encode response", err, loggingpkg.LogFields{"path": r.URL.Path})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the
// appropriate Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range s.Conf.CORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
