package handler

import (
	"errors"
	"net/http"
	"strings"

	"vibedocs/internal/gateway/api"
	llmclient "vibedocs/internal/llm/client"
)

// HandleValidate answers 200 for a usable key (including a rate-limited
// one), 401 for a rejected key and 400 for malformed input.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body api.ValidateBody
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ValidateResponse{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(body.Provider) == "" || strings.TrimSpace(body.APIKey) == "" {
		writeJSON(w, http.StatusBadRequest, api.ValidateResponse{Error: "provider and apiKey are required"})
		return
	}
	provider, err := llmclient.ParseProvider(body.Provider)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ValidateResponse{Error: llmclient.Classify(err).Message})
		return
	}

	res, err := h.validator.Validate(r.Context(), provider, body.APIKey, body.Model)
	if err != nil {
		var fe *llmclient.FormatError
		if errors.As(err, &fe) {
			writeJSON(w, http.StatusBadRequest, api.ValidateResponse{Provider: provider, Error: fe.Message, Hint: fe.Hint})
			return
		}
		ce := llmclient.Classify(err)
		if ce.Kind == llmclient.KindMalformedRequest {
			writeJSON(w, http.StatusBadRequest, api.ValidateResponse{Provider: provider, Error: ce.Message})
			return
		}
		h.logger.Printf("[validate] %s check failed: %v", provider, ce)
		writeJSON(w, http.StatusInternalServerError, api.ValidateResponse{Provider: provider, Error: "an error occurred while validating the API key"})
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusUnauthorized, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAIGenerate runs one free-form generation and reports token usage.
func (h *Handler) HandleAIGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body api.AIGenerateBody
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, api.AIGenerateResponse{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(body.APIKey) == "" || strings.TrimSpace(body.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, api.AIGenerateResponse{Error: "apiKey and prompt are required"})
		return
	}
	provider, err := llmclient.ParseProvider(body.Provider)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.AIGenerateResponse{Error: llmclient.Classify(err).Message})
		return
	}
	cred := llmclient.Credential{Provider: provider, APIKey: strings.TrimSpace(body.APIKey), Model: strings.TrimSpace(body.Model)}
	text, usage, err := h.text.GenerateWithUsage(r.Context(), cred, body.Prompt, body.SystemPrompt, body.MaxTokens)
	if err != nil {
		ce := llmclient.Classify(err)
		h.logger.Printf("[generate] %s call failed: %v", provider, ce)
		writeJSON(w, ce.Status, api.AIGenerateResponse{Error: ce.Message})
		return
	}
	writeJSON(w, http.StatusOK, api.AIGenerateResponse{Success: true, Text: text, Usage: &usage})
}
