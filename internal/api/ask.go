package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/insightx/insightx/internal/insight"
	"github.com/insightx/insightx/internal/nl2sql"
	"github.com/insightx/insightx/internal/query"
)

const maxAskBodyBytes = 16 << 10

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Insight == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "insight pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	answer, err := deps.Insight.Ask(r.Context(), request.Question)
	if err != nil {
		writeAskError(w, r, answer, err)
		return
	}
	if !answer.Executed {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_QUERY_GENERATED", "the model reply contained no query", false, map[string]any{
			"interaction_id": answer.InteractionID,
			"insight":        answer.Insight,
		})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeAskError(w http.ResponseWriter, r *http.Request, answer insight.Answer, err error) {
	var translationErr *nl2sql.TranslationError
	if errors.As(err, &translationErr) {
		status, code := http.StatusBadGateway, "TRANSLATION_FAILED"
		if translationErr.Timeout {
			status, code = http.StatusGatewayTimeout, "TRANSLATION_TIMEOUT"
		}
		writeError(r.Context(), w, status, code, "failed to translate question", translationErr.Retryable(), map[string]any{
			"interaction_id": answer.InteractionID,
			"provider":       translationErr.Provider,
			"model":          translationErr.Model,
			"details":        translationErr.Error(),
		})
		return
	}

	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "generated query failed", false, map[string]any{
			"interaction_id": answer.InteractionID,
			"insight":        answer.Insight,
			"query":          answer.Query,
			"details":        execErr.Error(),
		})
		return
	}

	writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", "failed to answer question", true, map[string]any{
		"interaction_id": answer.InteractionID,
		"details":        err.Error(),
	})
}

func handleLedger(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Insight == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "LEDGER_NOT_CONFIGURED", "insight pipeline is not configured", false, nil)
		return
	}
	table, err := deps.Insight.Ledger(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "LEDGER_FAILED", "failed to load ledger", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   deps.Schema.Table(),
		"columns": deps.Schema.Columns(),
		"rules":   deps.Schema.Rules(),
	})
}
