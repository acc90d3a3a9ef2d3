package handler

import (
	"context"
	"errors"
	"net/http"

	"vibedocs/internal/gateway/api"
	"vibedocs/internal/gateway/stream"
	"vibedocs/internal/pipeline"
)

// HandleGenerate streams a full (or resumed) run as server-sent events.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body api.GenerateBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := generateRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}
	h.serveSSE(w, r, "stream", func(ctx context.Context) (<-chan pipeline.Event, error) {
		return h.orch.Generate(ctx, req)
	})
}

// HandleRegenerate streams a targeted rerun as server-sent events.
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body api.RegenerateBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := regenerateRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}
	h.serveSSE(w, r, "regenerate", func(ctx context.Context) (<-chan pipeline.Event, error) {
		return h.orch.Regenerate(ctx, req)
	})
}

func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request, tag string, start func(context.Context) (<-chan pipeline.Event, error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := start(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	sse, err := stream.NewSSE(w)
	if err != nil {
		cancel()
		writeError(w, err)
		return
	}
	if err := stream.Pump(events, sse); err != nil {
		cancel()
		if errors.Is(err, stream.ErrIncomplete) && r.Context().Err() != nil {
			h.logger.Printf("[%s] client disconnected", tag)
			return
		}
		h.logger.Printf("[%s] stream aborted: %v", tag, err)
	}
}
