package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightx/insightx/internal/auth"
	"github.com/insightx/insightx/internal/config"
	"github.com/insightx/insightx/internal/format"
	"github.com/insightx/insightx/internal/insight"
	"github.com/insightx/insightx/internal/observability"
	"github.com/insightx/insightx/internal/query"
	"github.com/insightx/insightx/internal/schema"
	"github.com/insightx/insightx/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// Asker is the pipeline behind /v1/ask and /v1/ledger.
type Asker interface {
	Ask(ctx context.Context, question string) (insight.Answer, error)
	Ledger(ctx context.Context) (format.Table, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Schema            *schema.Descriptor
	Insight           Asker
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	analyst := auth.RequireRole(auth.RoleAnalyst)
	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	protected.Handle("POST /v1/ask", analyst(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})))
	protected.Handle("GET /v1/ledger", analyst(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleLedger(deps, w, r)
	})))

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/schema", protectedHandler)
	mux.Handle("POST /v1/ask", protectedHandler)
	mux.Handle("GET /v1/ledger", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares,
			observability.LoggingMiddleware(deps.Logger),
			observability.RecoverMiddleware(deps.Logger),
		)
	}
	return chain(mux, middlewares...)
}

// CheckDatabase pings the SQL dataset store.
func CheckDatabase(db *sql.DB) ReadinessCheck {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("dataset database is not configured")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping dataset database: %w", err)
		}
		return nil
	}
}

// CheckDatasetSchema fetches the dataset's column set and compares it with
// the descriptor, so drift shows up before a question fails on it.
func CheckDatasetSchema(engine query.Engine, descriptor *schema.Descriptor) ReadinessCheck {
	return func(ctx context.Context) error {
		if engine == nil || descriptor == nil {
			return fmt.Errorf("dataset schema check is not configured")
		}
		result, err := engine.Execute(ctx, query.Request{
			SQL: fmt.Sprintf(`SELECT * FROM "%s" LIMIT 0`, descriptor.Table()),
		})
		if err != nil {
			return fmt.Errorf("query dataset table: %w", err)
		}
		return descriptor.Check(result.Columns)
	}
}

// CheckObjects verifies that every dataset snapshot object is reachable.
func CheckObjects(store storage.ObjectStore, keys []string) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return fmt.Errorf("object store is not configured")
		}
		return storage.StatAll(ctx, store, keys)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
