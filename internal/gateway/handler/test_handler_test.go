package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedocs/internal/documents"
	"vibedocs/internal/gateway/api"
	"vibedocs/internal/gatewayclient"
	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/validation"
)

const googleKey = "AIzaSyTestKey0000000000000"

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// respondByDocument answers each document prompt with its key, and fails
// the documents in fail with err.
func respondByDocument(fail map[documents.Key]error) func(ctx context.Context, req llm.Request) (string, error) {
	return func(ctx context.Context, req llm.Request) (string, error) {
		for _, k := range documents.Keys() {
			if documents.SystemPrompt(k) != req.SystemPrompt {
				continue
			}
			if err := fail[k]; err != nil {
				return "", err
			}
			if k == documents.TodoMaster {
				return "## Phase 1: Setup\n\n- [ ] Create repo (1h)\n", nil
			}
			return "# " + string(k), nil
		}
		return "OK", nil
	}
}

func newTestHandler(t *testing.T, respond func(ctx context.Context, req llm.Request) (string, error)) (*Handler, *llm.FakeFactory) {
	t.Helper()
	ff := &llm.FakeFactory{New: func(cred llm.Credential) *llm.FakeClient {
		return &llm.FakeClient{Model: cred.Model, Vendor: cred.Provider, Respond: respond}
	}}
	logger := log.New(io.Discard, "", 0)
	adapter := llm.NewAdapter(ff.Factory())
	orch := pipeline.NewOrchestrator(adapter, pipeline.Options{Sleep: noSleep, Logger: logger})
	validator := validation.New(adapter, validation.Options{Sleep: noSleep, Logger: logger})
	return New(orch, validator, adapter, logger), ff
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate-documents-stream", h.HandleGenerate)
	mux.HandleFunc("/api/regenerate-document", h.HandleRegenerate)
	mux.HandleFunc("/api/generate-documents-ws", h.HandleStreamWS)
	mux.HandleFunc("/api/ai/validate", h.HandleValidate)
	mux.HandleFunc("/api/ai/generate", h.HandleAIGenerate)
	mux.HandleFunc("/healthz", h.HandleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, run func(gatewayclient.Handler) error) []pipeline.Event {
	t.Helper()
	var evs []pipeline.Event
	require.NoError(t, run(func(ev pipeline.Event) error {
		evs = append(evs, ev)
		return nil
	}))
	return evs
}

func TestGenerateStreamsEveryDocument(t *testing.T) {
	h, ff := newTestHandler(t, respondByDocument(nil))
	cli := gatewayclient.New(newTestServer(t, h).URL)

	evs := collect(t, func(fn gatewayclient.Handler) error {
		return cli.Generate(context.Background(), api.GenerateBody{APIKey: googleKey, Idea: "book club", AppType: "web"}, fn)
	})

	require.Len(t, evs, 1+2*documents.Count+1)
	assert.Equal(t, pipeline.EventStart, evs[0].Type)
	assert.Equal(t, documents.Count, evs[0].TotalSteps)
	last := evs[len(evs)-1]
	assert.Equal(t, pipeline.EventComplete, last.Type)
	assert.Len(t, last.Documents, documents.Count)
	require.Len(t, last.Todos, 1)
	assert.Equal(t, "Create repo", last.Todos[0].Title)

	creds := ff.Credentials()
	require.NotEmpty(t, creds)
	assert.Equal(t, llmclient.ProviderGoogle, creds[0].Provider)
	assert.Equal(t, "gemini-2.5-flash", creds[0].Model)
}

func TestGenerateResumeSkipsCompletedDocuments(t *testing.T) {
	h, _ := newTestHandler(t, respondByDocument(nil))
	cli := gatewayclient.New(newTestServer(t, h).URL)

	body := api.GenerateBody{
		APIKey: googleKey, Idea: "book club", AppType: "web",
		SkipDocuments: []documents.Key{documents.IdeaBrief, documents.UserStories, documents.ScreenFlow},
	}
	evs := collect(t, func(fn gatewayclient.Handler) error { return cli.Generate(context.Background(), body, fn) })

	assert.Equal(t, 7, evs[0].TotalSteps)
	last := evs[len(evs)-1]
	assert.Contains(t, last.Documents, documents.IdeaBrief)
	assert.Equal(t, "", last.Documents[documents.IdeaBrief])
	var steps []int
	for _, ev := range evs {
		if ev.Type == pipeline.EventProgress {
			assert.NotEqual(t, documents.IdeaBrief, ev.DocumentKey)
			steps = append(steps, ev.Step)
		}
	}
	require.Len(t, steps, 7)
	assert.Equal(t, 4, steps[0])
	assert.Equal(t, 10, steps[6])
}

func TestGenerateRejectsMalformedRequest(t *testing.T) {
	h, ff := newTestHandler(t, respondByDocument(nil))
	srv := newTestServer(t, h)

	cases := map[string]string{
		"missing key":      `{"idea":"x","appType":"web"}`,
		"missing idea":     `{"apiKey":"` + googleKey + `","appType":"web"}`,
		"unknown provider": `{"apiKey":"` + googleKey + `","idea":"x","appType":"web","provider":"mistral"}`,
		"bad json":         `{"apiKey":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/generate-documents-stream", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			var out api.ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Error)
		})
	}
	assert.Empty(t, ff.Credentials(), "no provider call before the stream opens")
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, httptest.NewRequest(http.MethodGet, "/api/generate-documents-stream", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGeneratePartialFailureStillCompletes(t *testing.T) {
	h, _ := newTestHandler(t, respondByDocument(map[documents.Key]error{
		documents.PRD: errors.New("googleapi: Error 429: Resource has been exhausted (e.g. check quota)."),
	}))
	cli := gatewayclient.New(newTestServer(t, h).URL)

	evs := collect(t, func(fn gatewayclient.Handler) error {
		return cli.Generate(context.Background(), api.GenerateBody{APIKey: googleKey, Idea: "x", AppType: "mobile"}, fn)
	})
	var errEv *pipeline.Event
	for i := range evs {
		if evs[i].Type == pipeline.EventError {
			errEv = &evs[i]
		}
	}
	require.NotNil(t, errEv)
	assert.Equal(t, documents.PRD, errEv.DocumentKey)
	assert.Equal(t, llmclient.KindRateLimited, errEv.ErrorKind)
	assert.Contains(t, errEv.Content, "Document generation failed")

	last := evs[len(evs)-1]
	assert.Equal(t, []documents.Key{documents.PRD}, last.Failed)
	assert.Len(t, last.Documents, documents.Count)
}

func TestRegenerateOnlyNamedKeys(t *testing.T) {
	h, _ := newTestHandler(t, respondByDocument(nil))
	cli := gatewayclient.New(newTestServer(t, h).URL)

	body := api.RegenerateBody{
		GenerateBody: api.GenerateBody{
			APIKey: googleKey, Idea: "x", AppType: "web",
			ExistingDocs: map[documents.Key]string{documents.IdeaBrief: "# kept"},
		},
		DocumentKeys: []string{"prd"},
	}
	evs := collect(t, func(fn gatewayclient.Handler) error { return cli.Regenerate(context.Background(), body, fn) })

	assert.Equal(t, 1, evs[0].TotalSteps)
	last := evs[len(evs)-1]
	assert.Equal(t, "# kept", last.Documents[documents.IdeaBrief])
	assert.Equal(t, "# prd", last.Documents[documents.PRD])
	assert.Empty(t, last.Todos)
}

func TestRegenerateRequiresKeys(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cli := gatewayclient.New(newTestServer(t, h).URL)

	err := cli.Regenerate(context.Background(), api.RegenerateBody{
		GenerateBody: api.GenerateBody{APIKey: googleKey, Idea: "x", AppType: "web"},
	}, func(pipeline.Event) error { return nil })
	var apiErr *gatewayclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "documentKeys is required", apiErr.Message)
}

func TestStreamOverWebsocket(t *testing.T) {
	h, _ := newTestHandler(t, respondByDocument(nil))
	cli := gatewayclient.New(newTestServer(t, h).URL)

	frame := api.StreamFrame{RegenerateBody: api.RegenerateBody{GenerateBody: api.GenerateBody{APIKey: googleKey, Idea: "x", AppType: "web"}}}
	evs := collect(t, func(fn gatewayclient.Handler) error { return cli.Stream(context.Background(), frame, fn) })
	require.Len(t, evs, 1+2*documents.Count+1)
	assert.Equal(t, pipeline.EventComplete, evs[len(evs)-1].Type)

	frame.Mode = api.ModeRegenerate
	frame.DocumentKeys = []string{"apiSpec"}
	evs = collect(t, func(fn gatewayclient.Handler) error { return cli.Stream(context.Background(), frame, fn) })
	assert.Equal(t, 1, evs[0].TotalSteps)
}

func TestStreamOverWebsocketRejectsMalformed(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cli := gatewayclient.New(newTestServer(t, h).URL)

	err := cli.Stream(context.Background(), api.StreamFrame{}, func(pipeline.Event) error { return nil })
	var apiErr *gatewayclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "apiKey is required", apiErr.Message)
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestValidateStatuses(t *testing.T) {
	h, _ := newTestHandler(t, func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("API key not valid. Please pass a valid API key. [API_KEY_INVALID]")
	})
	srv := newTestServer(t, h)

	resp, out := postJSON(t, srv.URL+"/api/ai/validate", api.ValidateBody{Provider: "google", APIKey: googleKey})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, "invalid API key", out["error"])
	assert.NotEmpty(t, out["hint"])

	resp, out = postJSON(t, srv.URL+"/api/ai/validate", api.ValidateBody{Provider: "openai", APIKey: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], `start with "sk-"`)

	resp, _ = postJSON(t, srv.URL+"/api/ai/validate", api.ValidateBody{APIKey: googleKey})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateAcceptsRateLimitedKey(t *testing.T) {
	h, _ := newTestHandler(t, func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("Error 429: quota exceeded")
	})
	srv := newTestServer(t, h)

	resp, out := postJSON(t, srv.URL+"/api/ai/validate", api.ValidateBody{Provider: "google", APIKey: googleKey})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, true, out["rateLimited"])
	assert.NotEmpty(t, out["warning"])
}

func TestValidateThroughClient(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cli := gatewayclient.New(newTestServer(t, h).URL)

	res, err := cli.Validate(context.Background(), api.ValidateBody{Provider: "anthropic", APIKey: "sk-ant-REDACTED"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "claude-3-5-haiku-20241022", res.Model)
}

func TestAIGenerateReportsUsage(t *testing.T) {
	h, ff := newTestHandler(t, func(ctx context.Context, req llm.Request) (string, error) {
		return "generated text", nil
	})
	cli := gatewayclient.New(newTestServer(t, h).URL)

	out, err := cli.AIGenerate(context.Background(), api.AIGenerateBody{Provider: "openai", APIKey: "sk-test", Prompt: "write a haiku about go"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "generated text", out.Text)
	require.NotNil(t, out.Usage)
	assert.Equal(t, len("generated text")/4, out.Usage.OutputTokens)
	assert.Equal(t, "gpt-4o", ff.Credentials()[0].Model)
}

func TestAIGenerateMapsProviderErrors(t *testing.T) {
	h, _ := newTestHandler(t, func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("401 Unauthorized: invalid x-api-key")
	})
	cli := gatewayclient.New(newTestServer(t, h).URL)

	_, err := cli.AIGenerate(context.Background(), api.AIGenerateBody{Provider: "anthropic", APIKey: "sk-ant-x", Prompt: "hi"})
	var apiErr *gatewayclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cli := gatewayclient.New(newTestServer(t, h).URL)
	require.NoError(t, cli.Health(context.Background()))
}
