package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	genai "google.golang.org/genai"
)

func TestClassify_MessageMarkers(t *testing.T) {
	cases := []struct {
		msg    string
		kind   Kind
		status int
	}{
		{"API_KEY_INVALID: API key not valid", KindInvalidCredential, 401},
		{"Incorrect API key provided", KindInvalidCredential, 401},
		{"429 Too Many Requests", KindRateLimited, 429},
		{"You exceeded your current quota", KindRateLimited, 429},
		{"rate_limit_error", KindRateLimited, 429},
		{"models/foo is not found for API version", KindModelNotFound, 404},
		{"model_not_found", KindModelNotFound, 404},
		{"PERMISSION_DENIED on resource", KindPermissionDenied, 403},
		{"authentication_error", KindInvalidCredential, 401},
		{"Unauthorized", KindInvalidCredential, 401},
		{"connection reset by peer", KindUnknown, 500},
	}
	for _, tc := range cases {
		got := Classify(errors.New(tc.msg))
		assert.Equal(t, tc.kind, got.Kind, tc.msg)
		assert.Equal(t, tc.status, got.Status, tc.msg)
	}
}

func TestClassify_InvalidWinsOverRateLimit(t *testing.T) {
	got := Classify(errors.New("invalid request: 429"))
	assert.Equal(t, KindInvalidCredential, got.Kind)
}

func TestClassify_StructuredStatusFirst(t *testing.T) {
	err := fmt.Errorf("call: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "invalid-looking text"})
	got := Classify(err)
	assert.Equal(t, KindRateLimited, got.Kind)

	bad := genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. API_KEY_INVALID"}
	assert.Equal(t, KindInvalidCredential, Classify(bad).Kind)

	other := genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "contents is empty"}
	assert.Equal(t, KindMalformedRequest, Classify(other).Kind)
}

func TestClassify_DeadlineIsTimeout(t *testing.T) {
	got := Classify(fmt.Errorf("generate: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, got.Kind)
	assert.Equal(t, 504, got.Status)
}

func TestClassify_KeepsClassifiedError(t *testing.T) {
	in := &Error{Kind: KindRateLimited, Status: 429, Message: "slow down"}
	assert.Same(t, in, Classify(fmt.Errorf("wrap: %w", in)))
}

func TestClassify_TruncatesUnknown(t *testing.T) {
	got := Classify(errors.New(strings.Repeat("é", 400)))
	if len(got.Message) > MaxErrorMessage {
		t.Fatalf("message length %d exceeds %d", len(got.Message), MaxErrorMessage)
	}
	if !strings.HasPrefix(got.Message, "é") || strings.ContainsRune(got.Message, '�') {
		t.Fatalf("message split a rune: %q", got.Message[len(got.Message)-4:])
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, (&Error{Kind: KindRateLimited}).Retryable())
	assert.True(t, (&Error{Kind: KindUnknown}).Retryable())
	assert.False(t, (&Error{Kind: KindInvalidCredential}).Retryable())
	assert.False(t, (*Error)(nil).Retryable())
}
