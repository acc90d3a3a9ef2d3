package server

import (
	"net/http"

	"vibedocs/internal/gateway/handler"
	"vibedocs/internal/gateway/middleware"
)

func NewMux(h *handler.Handler, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Streaming
	mux.HandleFunc("/api/generate-documents-stream", h.HandleGenerate)
	mux.HandleFunc("/api/regenerate-document", h.HandleRegenerate)
	mux.HandleFunc("/api/generate-documents-ws", h.HandleStreamWS)

	// Provider access
	mux.HandleFunc("/api/ai/validate", h.HandleValidate)
	mux.HandleFunc("/api/ai/generate", h.HandleAIGenerate)

	mux.HandleFunc("/healthz", h.HandleHealth)

	// Middleware
	return middleware.CORS(allowedOrigins)(mux)
}
