package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/insightx/insightx/internal/schema"
)

type fakeBackend struct {
	reply   string
	err     error
	block   bool
	prompts []Prompt
}

func (f *fakeBackend) Generate(ctx context.Context, prompt Prompt) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newTestTranslator(t *testing.T, backend Backend, cfg Config) *Translator {
	t.Helper()
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	translator, err := NewTranslator(backend, descriptor, cfg)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	return translator
}

func TestTranslateForwardsQuestionAtZeroTemperature(t *testing.T) {
	backend := &fakeBackend{reply: "INSIGHT: x\nSQL: SELECT 1"}
	translator := newTestTranslator(t, backend, Config{Provider: "fake", Model: "m", MaxTokens: 256})

	raw, err := translator.Translate(context.Background(), "  What is the failure rate?  ")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if raw != "INSIGHT: x\nSQL: SELECT 1" {
		t.Fatalf("raw = %q", raw)
	}
	if len(backend.prompts) != 1 {
		t.Fatalf("prompts = %d", len(backend.prompts))
	}
	prompt := backend.prompts[0]
	if prompt.User != "  What is the failure rate?  " {
		t.Fatalf("user = %q", prompt.User)
	}
	if prompt.Temperature != 0 || prompt.MaxTokens != 256 {
		t.Fatalf("prompt = %+v", prompt)
	}
	if prompt.System != translator.instruction {
		t.Fatal("system prompt is not the built instruction")
	}
}

func TestBuildInstructionCarriesSchemaRulesAndFormat(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	instruction := BuildInstruction(descriptor)
	for _, want := range []string{
		"expert Data Analyst and SQL Developer for a digital payments company",
		"Table Name: transactions",
		"-transaction_amount (INTEGER)",
		"-is_high_value (INTEGER)",
		"1. Failure Rate = (SUM(CASE WHEN transaction_status = 'FAILED' THEN 1 ELSE 0 END) * 100.0) / COUNT(*)",
		"2. High Value = transaction_amount >= 5000",
		"AS failure_rate_pct",
		"INSIGHT:\n",
		"SQL:\n",
	} {
		if !strings.Contains(instruction, want) {
			t.Fatalf("instruction missing %q", want)
		}
	}
	if strings.Index(instruction, "INSIGHT:\n") > strings.Index(instruction, "SQL:\n") {
		t.Fatal("INSIGHT section must precede SQL section")
	}
}

func TestTranslateWrapsBackendFailure(t *testing.T) {
	cause := &StatusError{StatusCode: 503, Err: errors.New("overloaded")}
	translator := newTestTranslator(t, &fakeBackend{err: cause}, Config{Provider: "gemini", Model: "gemini-2.5-flash"})

	_, err := translator.Translate(context.Background(), "q")
	var trErr *TranslationError
	if !errors.As(err, &trErr) {
		t.Fatalf("Translate() error = %v, want TranslationError", err)
	}
	if trErr.Timeout || !trErr.Retryable() {
		t.Fatalf("timeout/retryable = %v/%v", trErr.Timeout, trErr.Retryable())
	}
	if trErr.Provider != "gemini" || !errors.Is(err, cause) {
		t.Fatalf("error = %#v", trErr)
	}
}

func TestTranslateReturnsBlankReplyForParsing(t *testing.T) {
	translator := newTestTranslator(t, &fakeBackend{reply: " \n "}, Config{})
	raw, err := translator.Translate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if parsed := Parse(raw); parsed != (Parsed{}) {
		t.Fatalf("Parse(%q) = %+v, want empty fields", raw, parsed)
	}
}

func TestTranslateWrapsMissingCandidate(t *testing.T) {
	translator := newTestTranslator(t, &fakeBackend{err: ErrEmptyResponse}, Config{})
	_, err := translator.Translate(context.Background(), "q")
	var trErr *TranslationError
	if !errors.As(err, &trErr) || !errors.Is(err, ErrEmptyResponse) || trErr.Retryable() {
		t.Fatalf("Translate() error = %v", err)
	}
}

func TestTranslateTimesOut(t *testing.T) {
	translator := newTestTranslator(t, &fakeBackend{block: true}, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := translator.Translate(context.Background(), "q")
	var trErr *TranslationError
	if !errors.As(err, &trErr) || !trErr.Timeout {
		t.Fatalf("Translate() error = %v, want timeout", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not enforced")
	}
}

func TestTranslateCallerCancellationIsNotTimeout(t *testing.T) {
	translator := newTestTranslator(t, &fakeBackend{block: true}, Config{Timeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := translator.Translate(ctx, "q")
	var trErr *TranslationError
	if !errors.As(err, &trErr) || trErr.Timeout {
		t.Fatalf("Translate() error = %v", err)
	}
}

func TestTranslateRateLimiterCountsAgainstTimeout(t *testing.T) {
	backend := &fakeBackend{reply: "SQL: SELECT 1"}
	translator := newTestTranslator(t, backend, Config{Timeout: 50 * time.Millisecond, RateLimitRPS: 0.5})

	if _, err := translator.Translate(context.Background(), "first"); err != nil {
		t.Fatalf("first Translate() error = %v", err)
	}
	_, err := translator.Translate(context.Background(), "second")
	var trErr *TranslationError
	if !errors.As(err, &trErr) || !trErr.Timeout {
		t.Fatalf("second Translate() error = %v, want timeout", err)
	}
	if len(backend.prompts) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(backend.prompts))
	}
}

func TestNewTranslatorValidates(t *testing.T) {
	if _, err := NewTranslator(nil, nil, Config{}); err == nil {
		t.Fatal("expected error for nil backend")
	}
	if _, err := NewTranslator(&fakeBackend{}, nil, Config{}); err == nil {
		t.Fatal("expected error for nil descriptor")
	}
}
