// Package nl2sql turns a natural-language question into model text that
// carries a business insight and a SQL query, and parses that text back into
// its two fields.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/insightx/insightx/internal/schema"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultTimeout = 30 * time.Second
)

// ErrEmptyResponse is returned by a Backend whose reply carried no candidate
// at all. A candidate with blank text is not an error: it parses to no
// insight and no query.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Prompt is what a Backend sends to the model.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Backend is one text-generation provider.
type Backend interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// StatusError carries the HTTP status code an upstream provider answered with.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// TranslationError reports that the backend failed, timed out or sent a
// reply without any candidate.
type TranslationError struct {
	Provider string
	Model    string
	Timeout  bool
	Err      error
}

func (e *TranslationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("translate with %s/%s: timed out: %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("translate with %s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether asking again later may succeed.
func (e *TranslationError) Retryable() bool {
	if e.Timeout {
		return true
	}
	var status *StatusError
	if errors.As(e.Err, &status) {
		return status.StatusCode == 429 || status.StatusCode >= 500
	}
	return false
}

type Config struct {
	Provider     string
	Model        string
	Timeout      time.Duration
	MaxTokens    int
	RateLimitRPS float64
}

type Translator struct {
	backend     Backend
	instruction string
	provider    string
	model       string
	timeout     time.Duration
	maxTokens   int
	limiter     *rate.Limiter
}

func NewTranslator(backend Backend, descriptor *schema.Descriptor, cfg Config) (*Translator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if descriptor == nil {
		return nil, fmt.Errorf("schema descriptor is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Translator{
		backend:     backend,
		instruction: BuildInstruction(descriptor),
		provider:    cfg.Provider,
		model:       cfg.Model,
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
	}
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return t, nil
}

func (t *Translator) Provider() string {
	return t.provider
}

func (t *Translator) Model() string {
	return t.model
}

// Translate sends the question to the backend at temperature zero and returns
// the model text unchanged. The question is forwarded as is.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", t.fail(ctx, fmt.Errorf("wait for rate limiter: %w", err))
		}
	}

	raw, err := t.backend.Generate(ctx, Prompt{
		System:      t.instruction,
		User:        question,
		Temperature: 0,
		MaxTokens:   t.maxTokens,
	})
	if err != nil {
		return "", t.fail(ctx, err)
	}
	return raw, nil
}

func (t *Translator) fail(ctx context.Context, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	if !timeout && ctx.Err() == nil && strings.Contains(err.Error(), "would exceed context deadline") {
		// rate.Limiter refuses early when the wait cannot finish in time.
		timeout = true
	}
	return &TranslationError{Provider: t.provider, Model: t.model, Timeout: timeout, Err: err}
}

// BuildInstruction composes the system instruction: the analyst role, the
// schema column by column, the numbered business rules and the two-section
// output contract.
func BuildInstruction(descriptor *schema.Descriptor) string {
	var b strings.Builder
	b.WriteString("You are an expert Data Analyst and SQL Developer for a digital payments company.\n\n")
	b.WriteString("Your job:\n")
	b.WriteString("1. Generate a valid SQL query that answers the user's question.\n")
	b.WriteString("2. Provide a short business insight explaining what the result means.\n\n")
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(descriptor.Document())
	b.WriteString("\nBUSINESS RULES:\n")
	b.WriteString(descriptor.RulesDocument())
	b.WriteString("\nGive every computed column a short snake_case alias that says what it holds,\n")
	b.WriteString("for example AS failure_rate_pct or AS avg_amount.\n")
	b.WriteString("\nOUTPUT FORMAT (STRICTLY FOLLOW THIS FORMAT):\n\n")
	b.WriteString("INSIGHT:\n<Write 1-2 lines of business explanation>\n\n")
	b.WriteString("SQL:\n<Write only the raw SQL query without markdown blocks>\n")
	return b.String()
}
