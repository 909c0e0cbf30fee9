package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/harshithgowdakt/heapdb/internal/engine"
	"github.com/harshithgowdakt/heapdb/internal/errkind"
)

// QueryHandler handles HTTP query requests.
type QueryHandler struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(eng *engine.Engine, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{eng: eng, logger: logger}
}

// HandleQuery processes SQL statements received via HTTP.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		query = strings.TrimSpace(string(body))
	}
	if query == "" {
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		user = engine.DefaultUser
	}
	format := ParseFormat(r.URL.Query().Get("format"))

	result, err := h.eng.ExecuteAs(r.Context(), query, user)
	if err != nil {
		h.logger.Warn("statement failed", zap.String("query", query), zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	if len(result.Columns) > 0 {
		switch format {
		case FormatJSON:
			w.Header().Set("Content-Type", "application/json")
		case FormatCSV:
			w.Header().Set("Content-Type", "text/csv")
		default:
			w.Header().Set("Content-Type", "text/tab-separated-values")
		}
		if err := FormatRows(w, result.Columns, result.Rows, format); err != nil {
			http.Error(w, fmt.Sprintf("format error: %v", err), http.StatusInternalServerError)
		}
	} else {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, result.Message)
	}
}

// statusFor maps an execution error to an HTTP status. Violated engine
// invariants and durability failures are server-side errors; everything
// the client could have caused is a bad request.
func statusFor(err error) int {
	if k, ok := errkind.KindOf(err); ok {
		switch k {
		case errkind.KindInternal, errkind.KindDurabilityUnmet:
			return http.StatusInternalServerError
		}
	}
	return http.StatusBadRequest
}

// HandlePing responds with "Ok." for health checks.
func (h *QueryHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Ok.")
}
