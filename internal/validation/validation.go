package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
)

// ProbePrompt is the trivial prompt sent to each candidate model.
const ProbePrompt = `Say "OK"`

// Prober performs a liveness call. *llm.Adapter satisfies it.
type Prober interface {
	Probe(ctx context.Context, cred llmclient.Credential, testPrompt string) (llm.ProbeResult, error)
}

// Result is the verdict for one key.
type Result struct {
	Valid       bool               `json:"valid"`
	Provider    llmclient.Provider `json:"provider,omitempty"`
	Model       string             `json:"model,omitempty"`
	Warning     string             `json:"warning,omitempty"`
	RateLimited bool               `json:"rateLimited,omitempty"`
	Error       string             `json:"error,omitempty"`
	Hint        string             `json:"hint,omitempty"`
}

type Options struct {
	// CandidateDelay separates attempts on consecutive candidate models.
	CandidateDelay time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	Sleep          func(ctx context.Context, d time.Duration) error
	Logger         *log.Logger
}

// Service checks API keys. Format errors never reach the network.
type Service struct {
	prober Prober
	opts   Options
	cache  *expirable.LRU[string, Result]
}

func New(prober Prober, opts Options) *Service {
	if opts.CandidateDelay <= 0 {
		opts.CandidateDelay = 300 * time.Millisecond
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Sleep == nil {
		opts.Sleep = llm.SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Service{
		prober: prober,
		opts:   opts,
		cache:  expirable.NewLRU[string, Result](opts.CacheSize, nil, opts.CacheTTL),
	}
}

func cacheKey(p llmclient.Provider, key, model string) string {
	sum := sha256.Sum256([]byte(string(p) + "\x00" + key + "\x00" + model))
	return hex.EncodeToString(sum[:])
}

// Validate returns a verdict for key. Malformed input is returned as an
// error: *llmclient.Error for a missing key or unknown provider and
// *llmclient.FormatError for a key of the wrong shape. A rejected key is a
// Result with Valid=false, not an error.
func (s *Service) Validate(ctx context.Context, provider llmclient.Provider, apiKey, model string) (Result, error) {
	apiKey = strings.TrimSpace(apiKey)
	model = strings.TrimSpace(model)
	if apiKey == "" {
		return Result{}, llmclient.Malformed("provider and apiKey are required")
	}
	if _, ok := llmclient.Lookup(provider); !ok {
		return Result{}, llmclient.Malformed("unsupported provider: %s", provider)
	}
	if err := llmclient.CheckKeyFormat(provider, apiKey); err != nil {
		return Result{}, err
	}

	ck := cacheKey(provider, apiKey, model)
	if r, ok := s.cache.Get(ck); ok {
		return r, nil
	}

	s.opts.Logger.Printf("[validate] checking %s key", provider)
	r, err := s.probe(ctx, provider, apiKey, model)
	if err != nil {
		return Result{}, err
	}
	if r.Valid && !r.RateLimited {
		s.cache.Add(ck, r)
	}
	if r.Valid {
		s.opts.Logger.Printf("[validate] %s key is valid, model: %s", provider, r.Model)
	} else {
		s.opts.Logger.Printf("[validate] %s key rejected: %s", provider, r.Error)
	}
	return r, nil
}

func (s *Service) probe(ctx context.Context, provider llmclient.Provider, apiKey, model string) (Result, error) {
	hint := llmclient.KeyHint(provider)
	candidates := llmclient.ProbeCandidates(provider, model)
	lastMsg := "all candidate models failed"
	for i, m := range candidates {
		res, err := s.prober.Probe(ctx, llmclient.Credential{Provider: provider, APIKey: apiKey, Model: m}, ProbePrompt)
		if err == nil && res.OK {
			used := res.ModelUsed
			if used == "" {
				used = m
			}
			return Result{Valid: true, Provider: provider, Model: used}, nil
		}
		if err == nil {
			err = llmclient.ErrEmptyResponse
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		ce := llmclient.Classify(err)
		switch ce.Kind {
		case llmclient.KindRateLimited:
			return Result{
				Valid:       true,
				Provider:    provider,
				Model:       m,
				Warning:     "quota exceeded; the key is valid and can be used shortly",
				RateLimited: true,
			}, nil
		case llmclient.KindInvalidCredential, llmclient.KindPermissionDenied:
			return Result{Valid: false, Provider: provider, Error: ce.Message, Hint: hint}, nil
		}
		lastMsg = llmclient.Truncate(ce.Message, 200)
		if i < len(candidates)-1 {
			if err := s.opts.Sleep(ctx, s.opts.CandidateDelay); err != nil {
				return Result{}, err
			}
		}
	}
	return Result{Valid: false, Provider: provider, Error: lastMsg, Hint: hint}, nil
}
