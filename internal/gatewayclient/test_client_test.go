package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedocs/internal/documents"
	"vibedocs/internal/gateway/api"
	"vibedocs/internal/pipeline"
)

func TestReadEventsStopsAtComplete(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"type":"start","totalSteps":2}`,
		``,
		`: keep-alive comment`,
		`data: {"type":"progress","documentKey":"prd","step":1,"totalSteps":2}`,
		``,
		`data: {"type":"complete","documents":{"prd":"# PRD"}}`,
		``,
		`data: {"type":"start"}`,
		``,
	}, "\n")

	var got []pipeline.EventType
	err := ReadEvents(strings.NewReader(stream), func(ev pipeline.Event) error {
		got = append(got, ev.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []pipeline.EventType{pipeline.EventStart, pipeline.EventProgress, pipeline.EventComplete}, got)
}

func TestReadEventsWithoutComplete(t *testing.T) {
	err := ReadEvents(strings.NewReader("data: {\"type\":\"start\"}\n\n"), func(pipeline.Event) error { return nil })
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestReadEventsHandlesLargeDocuments(t *testing.T) {
	big := strings.Repeat("x", 2<<20)
	raw, err := json.Marshal(pipeline.Event{Type: pipeline.EventComplete, Documents: map[documents.Key]string{documents.PRD: big}})
	require.NoError(t, err)

	var size int
	err = ReadEvents(strings.NewReader("data: "+string(raw)+"\n\n"), func(ev pipeline.Event) error {
		size = len(ev.Documents[documents.PRD])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(big), size)
}

func TestReadEventsPropagatesHandlerError(t *testing.T) {
	stop := errors.New("stop")
	err := ReadEvents(strings.NewReader("data: {\"type\":\"start\"}\n\n"), func(pipeline.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestGenerateSurfacesJSONErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body api.GenerateBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"idea is required","errorKind":"malformed_request"}`)
	}))
	defer srv.Close()

	err := New(srv.URL+"/").Generate(context.Background(), api.GenerateBody{APIKey: "k"}, func(pipeline.Event) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "idea is required", apiErr.Message)
}

func TestPlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).AIGenerate(context.Background(), api.AIGenerateBody{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestValidateDecodesRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"valid":false,"error":"invalid API key","hint":"https://aistudio.google.com/app/apikey"}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).Validate(context.Background(), api.ValidateBody{Provider: "google", APIKey: "AIza"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "invalid API key", res.Error)
	assert.NotEmpty(t, res.Hint)
}

func TestCancelAbortsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"start\",\"totalSteps\":10}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := New(srv.URL).Generate(ctx, api.GenerateBody{}, func(ev pipeline.Event) error {
		cancel()
		return nil
	})
	require.Error(t, err)
}
