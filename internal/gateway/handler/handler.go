package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"vibedocs/internal/documents"
	"vibedocs/internal/gateway/api"
	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/validation"
)

// Orchestrator starts document runs. *pipeline.Orchestrator satisfies it.
type Orchestrator interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (<-chan pipeline.Event, error)
	Regenerate(ctx context.Context, req pipeline.RegenerateRequest) (<-chan pipeline.Event, error)
}

// Validator checks keys. *validation.Service satisfies it.
type Validator interface {
	Validate(ctx context.Context, provider llmclient.Provider, apiKey, model string) (validation.Result, error)
}

// TextGenerator serves single free-form generations. *llm.Adapter satisfies it.
type TextGenerator interface {
	GenerateWithUsage(ctx context.Context, cred llmclient.Credential, prompt, systemPrompt string, maxTokens int) (string, llm.Usage, error)
}

// Handler serves the document gateway endpoints.
type Handler struct {
	orch      Orchestrator
	validator Validator
	text      TextGenerator
	logger    *log.Logger
}

func New(orch Orchestrator, validator Validator, text TextGenerator, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{orch: orch, validator: validator, text: text, logger: logger}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func brief(body api.GenerateBody) (pipeline.Brief, error) {
	provider, err := llmclient.ParseProvider(body.Provider)
	if err != nil {
		return pipeline.Brief{}, err
	}
	model := strings.TrimSpace(body.Model)
	if model == "" {
		model = llmclient.DefaultModel(provider)
	}
	lang := documents.Language(strings.TrimSpace(body.Language))
	if lang == "" {
		lang = documents.DefaultLanguage
	}
	return pipeline.Brief{
		Credential: llmclient.Credential{Provider: provider, APIKey: strings.TrimSpace(body.APIKey), Model: model},
		Idea:       strings.TrimSpace(body.Idea),
		AppType:    documents.AppType(strings.TrimSpace(body.AppType)),
		Template:   strings.TrimSpace(body.Template),
		Language:   lang,
	}, nil
}

func generateRequest(body api.GenerateBody) (pipeline.GenerateRequest, error) {
	b, err := brief(body)
	if err != nil {
		return pipeline.GenerateRequest{}, err
	}
	return pipeline.GenerateRequest{Brief: b, Skip: body.SkipDocuments, Existing: body.ExistingDocs}, nil
}

func regenerateRequest(body api.RegenerateBody) (pipeline.RegenerateRequest, error) {
	b, err := brief(body.GenerateBody)
	if err != nil {
		return pipeline.RegenerateRequest{}, err
	}
	return pipeline.RegenerateRequest{Brief: b, Keys: body.DocumentKeys, Existing: body.ExistingDocs}, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(v); err != nil {
		return llmclient.Malformed("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with the taxonomy status of err.
func writeError(w http.ResponseWriter, err error) {
	var fe *llmclient.FormatError
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusBadRequest, api.ErrorBody{Error: fe.Message, ErrorKind: llmclient.KindMalformedRequest, Hint: fe.Hint})
		return
	}
	ce := llmclient.Classify(err)
	status := ce.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, api.ErrorBody{Error: ce.Message, ErrorKind: ce.Kind})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, api.ErrorBody{Error: "method not allowed"})
	return false
}
