package pipeline

import (
	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/todo"
)

type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventDocument EventType = "document"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one frame of a generation stream. The JSON names are the wire
// contract shared by the SSE and websocket transports.
type Event struct {
	Type        EventType      `json:"type"`
	DocumentKey documents.Key  `json:"documentKey,omitempty"`
	Step        int            `json:"step,omitempty"`
	TotalSteps  int            `json:"totalSteps,omitempty"`
	Content     string         `json:"content,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   llmclient.Kind `json:"errorKind,omitempty"`
	Status      int            `json:"status,omitempty"`
	RetryCount  *int           `json:"retryCount,omitempty"`
	MaxRetries  int            `json:"maxRetries,omitempty"`

	Documents map[documents.Key]string `json:"documents,omitempty"`
	Todos     []todo.Record            `json:"todos,omitempty"`
	Failed    []documents.Key          `json:"failed,omitempty"`
}

// Terminal reports whether the event ends a document's attempt.
func (e Event) Terminal() bool {
	return e.Type == EventDocument || e.Type == EventError
}

// IsRetry reports whether a progress event announces another attempt.
func (e Event) IsRetry() bool {
	return e.Type == EventProgress && e.RetryCount != nil
}

func intPtr(n int) *int { return &n }
