// Package insight runs one question through the whole pipeline: translate it,
// parse the reply, execute the generated query and format the result.
package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insightx/insightx/internal/format"
	"github.com/insightx/insightx/internal/nl2sql"
	"github.com/insightx/insightx/internal/observability"
	"github.com/insightx/insightx/internal/query"
)

const (
	DefaultLedgerLimit = 100
	amountColumn       = "transaction_amount"
)

type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
	Provider() string
}

// Answer is the outcome of one interaction. Executed is false when the reply
// carried no query; Table is set only after a successful execution.
type Answer struct {
	InteractionID string        `json:"interaction_id"`
	Question      string        `json:"question"`
	Insight       string        `json:"insight"`
	Query         string        `json:"query"`
	Executed      bool          `json:"executed"`
	Table         *format.Table `json:"result,omitempty"`
}

type Config struct {
	Table       string
	LedgerLimit int
}

type Service struct {
	translator  Translator
	engine      query.Engine
	table       string
	ledgerLimit int
	logger      *slog.Logger
}

func NewService(translator Translator, engine query.Engine, cfg Config, logger *slog.Logger) (*Service, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("dataset table is required")
	}
	limit := cfg.LedgerLimit
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		translator:  translator,
		engine:      engine,
		table:       cfg.Table,
		ledgerLimit: limit,
		logger:      logger,
	}, nil
}

// Ask answers one question, forwarding it to the translator as is. Translation failures come back as
// *nl2sql.TranslationError and query failures as *query.ExecutionError; in
// the latter case the returned Answer still holds the insight and query. A
// reply without a query is not an error: the Answer has Executed false.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	answer := Answer{InteractionID: uuid.NewString(), Question: question}
	logger := s.logger.With(
		slog.String("interaction_id", answer.InteractionID),
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("provider", s.translator.Provider()),
	)

	start := time.Now()
	raw, err := s.translator.Translate(ctx, question)
	translateElapsed := time.Since(start)
	observability.ObserveTranslation(s.translator.Provider(), err, translateElapsed)
	if err != nil {
		logger.WarnContext(ctx, "ask_failed",
			slog.String("stage", "translate"),
			slog.Int64("translate_ms", translateElapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		return answer, err
	}

	parsed := nl2sql.Parse(raw)
	answer.Insight = format.Insight(parsed.Insight)
	answer.Query = parsed.Query
	if parsed.Query == "" {
		observability.IncrementParseDegradation()
		logger.InfoContext(ctx, "ask_completed",
			slog.Bool("executed", false),
			slog.Int64("translate_ms", translateElapsed.Milliseconds()),
		)
		return answer, nil
	}

	result, err := s.engine.Execute(ctx, query.Request{SQL: parsed.Query})
	observability.ObserveQueryExecution(err, result.Duration)
	if err != nil {
		var execErr *query.ExecutionError
		if !errors.As(err, &execErr) {
			err = &query.ExecutionError{SQL: parsed.Query, Err: err}
		}
		logger.WarnContext(ctx, "ask_failed",
			slog.String("stage", "execute"),
			slog.String("query", parsed.Query),
			slog.Int64("translate_ms", translateElapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		return answer, err
	}

	table := format.Result(parsed.Query, result)
	answer.Table = &table
	answer.Executed = true
	logger.InfoContext(ctx, "ask_completed",
		slog.Bool("executed", true),
		slog.Int("rows", len(result.Rows)),
		slog.Int64("translate_ms", translateElapsed.Milliseconds()),
		slog.Int64("query_ms", result.Duration.Milliseconds()),
	)
	return answer, nil
}

// Ledger lists the first rows of the dataset with amounts in rupees.
func (s *Service) Ledger(ctx context.Context) (format.Table, error) {
	result, err := s.engine.Execute(ctx, query.Request{
		SQL:      fmt.Sprintf(`SELECT * FROM "%s"`, s.table),
		RowLimit: s.ledgerLimit,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ledger_failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		return format.Table{}, err
	}
	return format.Ledger(result, amountColumn), nil
}
