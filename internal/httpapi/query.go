package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/executor"
	"github.com/postgate/postgate/internal/httpmw"
	"github.com/postgate/postgate/internal/logger"
	"github.com/postgate/postgate/internal/metrics"
	"github.com/postgate/postgate/internal/storage/pg"
	"github.com/postgate/postgate/internal/validator"
)

// queryRequest is the body of POST /query.
type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type queryResponse struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int               `json:"row_count"`
}

// Handler serves the gateway's HTTP surface.
type Handler struct {
	storage  *pg.Storage
	executor *executor.Executor
}

func NewHandler(storage *pg.Storage, exec *executor.Executor) *Handler {
	return &Handler{storage: storage, executor: exec}
}

// Query handles POST /query: validate the statement against the caller's
// policy, execute it tenant-scoped, and return rows or a coded error.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	policy, tokenID := httpmw.PolicyFromContext(r)

	if !hasJSONContentType(r) {
		httpmw.WriteError(w, apperr.ParseError("Content-Type must be application/json"))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, apperr.ParseError("body is not valid JSON"))
		return
	}

	validated, err := validator.Validate(req.SQL, policy)
	if err != nil {
		recordQueryError(err)
		httpmw.WriteError(w, err)
		return
	}

	tenant, found, err := h.storage.GetTenant(r.Context(), policy.TenantID)
	if err != nil {
		recordQueryError(err)
		httpmw.WriteError(w, apperr.InternalError(err.Error()))
		return
	}
	if !found {
		err := apperr.DatabaseNotFound("tenant not found")
		recordQueryError(err)
		httpmw.WriteError(w, err)
		return
	}

	res, err := h.executor.Execute(r.Context(), tenant, tokenID, validated, req.Params, tenant.RowCap)
	if err != nil {
		recordQueryError(err)
		httpmw.WriteError(w, err)
		return
	}
	metrics.QueryRowsServed.Add(float64(res.RowCount))

	rows := res.Rows
	if rows == nil {
		rows = []map[string]any{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(queryResponse{Rows: rows, RowCount: res.RowCount}); err != nil {
		logger.Log.Error("failed to write query response", "error", err)
	}
}

// hasJSONContentType reports whether r carries a Content-Type of
// application/json, ignoring a trailing charset or other parameter.
func hasJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

func recordQueryError(err error) {
	metrics.QueryErrorsTotal.WithLabelValues(string(apperr.AsCoded(err).Code)).Inc()
}
