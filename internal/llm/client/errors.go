package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	genai "google.golang.org/genai"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindInvalidCredential Kind = "invalid_credential"
	KindRateLimited       Kind = "rate_limited"
	KindModelNotFound     Kind = "model_not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindTimeout           Kind = "timeout"
	KindMalformedRequest  Kind = "malformed_request"
	KindUnknown           Kind = "unknown"
)

// MaxErrorMessage bounds the message of an unclassified failure.
const MaxErrorMessage = 300

// Error is a classified provider failure. Status is the HTTP status the
// gateway reports for it.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindInvalidCredential, KindPermissionDenied, KindMalformedRequest, KindModelNotFound:
		return false
	}
	return true
}

// KindOf returns the classification of err, classifying it if needed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// IsRateLimited reports whether err is (or classifies as) a rate-limit failure.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

var (
	invalidKeyMarkers = []string{"api_key_invalid", "invalid", "incorrect api key"}
	rateLimitMarkers  = []string{"429", "quota", "rate_limit", "rate limit"}
	notFoundMarkers   = []string{"404", "not found", "model_not_found"}
	permissionMarkers = []string{"403", "permission", "permission_denied"}
	authMarkers       = []string{"401", "authentication", "unauthorized"}
)

// Classify maps any error to an *Error. Structured status codes exposed by
// the provider SDKs take precedence; message markers are the fallback and
// are checked in a fixed order: invalid key, rate limit, not found,
// permission, authentication.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out", Err: err}
	}

	msg := err.Error()
	if status, detail, ok := sdkStatus(err); ok {
		if detail != "" {
			msg = detail
		}
		if k, ok := kindForStatus(status, msg); ok {
			return &Error{Kind: k, Status: statusFor(k), Message: messageFor(k, msg), Err: err}
		}
	}
	k := kindForMessage(msg)
	return &Error{Kind: k, Status: statusFor(k), Message: messageFor(k, msg), Err: err}
}

func sdkStatus(err error) (int, string, bool) {
	var gv genai.APIError
	if errors.As(err, &gv) {
		return gv.Code, strings.TrimSpace(gv.Status + " " + gv.Message), true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code, strings.TrimSpace(gp.Status + " " + gp.Message), true
	}
	var oe *openai.Error
	if errors.As(err, &oe) && oe != nil {
		return oe.StatusCode, oe.Error(), true
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) && ae != nil {
		return ae.StatusCode, ae.Error(), true
	}
	return 0, "", false
}

func kindForStatus(status int, msg string) (Kind, bool) {
	switch status {
	case http.StatusUnauthorized:
		return KindInvalidCredential, true
	case http.StatusTooManyRequests:
		return KindRateLimited, true
	case http.StatusNotFound:
		return KindModelNotFound, true
	case http.StatusForbidden:
		return KindPermissionDenied, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout, true
	case http.StatusBadRequest:
		// Gemini rejects bad keys with 400 API_KEY_INVALID.
		if containsAny(strings.ToLower(msg), invalidKeyMarkers[:1]...) {
			return KindInvalidCredential, true
		}
		return KindMalformedRequest, true
	}
	return "", false
}

func kindForMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, invalidKeyMarkers...):
		return KindInvalidCredential
	case containsAny(lower, rateLimitMarkers...):
		return KindRateLimited
	case containsAny(lower, notFoundMarkers...):
		return KindModelNotFound
	case containsAny(lower, permissionMarkers...):
		return KindPermissionDenied
	case containsAny(lower, authMarkers...):
		return KindInvalidCredential
	}
	return KindUnknown
}

func statusFor(k Kind) int {
	switch k {
	case KindInvalidCredential:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindModelNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindMalformedRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func messageFor(k Kind, raw string) string {
	switch k {
	case KindInvalidCredential:
		return "invalid API key"
	case KindRateLimited:
		return "API quota exceeded or rate limited; try again later"
	case KindModelNotFound:
		return "model not found or not available for this key"
	case KindPermissionDenied:
		return "API key lacks permission for this model"
	case KindTimeout:
		return "request timed out"
	case KindMalformedRequest:
		return Truncate(raw, MaxErrorMessage)
	}
	return Truncate(raw, MaxErrorMessage)
}

// Truncate shortens s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Malformed builds a MalformedRequest error.
func Malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformedRequest, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// FormatError reports a key that fails the local shape check.
type FormatError struct {
	Provider Provider
	Message  string
	Hint     string
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
