// Package executor implements the Executor (component E): it runs a
// validated statement inside a tenant-scoped transaction, enforces the row
// cap by peeking one row past it, and serializes the result set to the
// wire's JSON-safe row shape.
//
// The transaction-scoping step (SET LOCAL search_path for Shared backends)
// and the commit/rollback bracket follow the teacher's withTx pattern
// (internal/storage/pg/pg.go); the row-streaming and column-name dance is
// grounded on the generic row-to-map scan loop in the retrieval pack's
// WeKnora database-query tool, adapted here to peek one row past the cap
// instead of materializing everything.
package executor

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/connprovider"
	"github.com/postgate/postgate/internal/domain"
	"github.com/postgate/postgate/internal/validator"
)

// Toucher enqueues a best-effort, async record of a token's use; satisfied
// by *touchqueue.Queue.
type Toucher interface {
	Enqueue(id uuid.UUID, when time.Time)
}

// Result is the wire-ready shape of a successful execution.
type Result struct {
	Rows     []map[string]any
	RowCount int
}

// Executor runs validated statements against tenant-scoped sessions.
type Executor struct {
	provider     *connprovider.Provider
	touch        Toucher
	queryTimeout time.Duration
}

func New(provider *connprovider.Provider, touch Toucher, queryTimeout time.Duration) *Executor {
	return &Executor{provider: provider, touch: touch, queryTimeout: queryTimeout}
}

// Execute runs v.SQL with params bound positionally against tenant's
// backend, enforcing rowCap. It always resolves to either a Result or an
// apperr-coded error; partial results never escape a cap violation — the
// transaction is rolled back before this returns. On success, tokenID's
// last-used timestamp is enqueued for an async, best-effort update.
func (e *Executor) Execute(ctx context.Context, tenant domain.Tenant, tokenID uuid.UUID, v validator.Validated, params []any, rowCap int) (Result, error) {
	session, err := e.provider.Acquire(ctx, tenant)
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	tx, err := session.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, classifyConnError(err)
	}
	defer tx.Rollback()

	// statement_timeout backs the context deadline with a server-side bound:
	// the context can only stop the client from waiting, not a query already
	// running on the server past a dead connection.
	timeoutStmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", e.queryTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeoutStmt); err != nil {
		return Result{}, apperr.DatabaseError(fmt.Sprintf("failed to set statement timeout: %v", err))
	}

	if session.Namespace != "" {
		stmt := fmt.Sprintf("SET LOCAL search_path TO %s, %s",
			pq.QuoteIdentifier(session.Namespace), pq.QuoteIdentifier(validator.HelperSchema))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Result{}, apperr.DatabaseError(fmt.Sprintf("failed to bind tenant namespace: %v", err))
		}
	}

	res, err := runCapped(ctx, tx, v.SQL, params, rowCap)
	if err != nil {
		return Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, classifyConnError(err)
	}

	if e.touch != nil {
		e.touch.Enqueue(tokenID, time.Now().UTC())
	}

	return res, nil
}

// runCapped streams rows out of the driver, aborting as soon as rowCap+1
// rows have been seen so a runaway SELECT never gets fully materialized
// before being rejected.
func runCapped(ctx context.Context, tx *sql.Tx, query string, params []any, rowCap int) (Result, error) {
	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		return Result{}, classifyQueryError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, apperr.DatabaseError(fmt.Sprintf("failed to read columns: %v", err))
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return Result{}, apperr.DatabaseError(fmt.Sprintf("failed to read column types: %v", err))
	}

	out := make([]map[string]any, 0, rowCap)
	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if len(out) >= rowCap {
			return Result{}, apperr.RowLimitExceeded(fmt.Sprintf("result exceeds row cap of %d", rowCap))
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, apperr.DatabaseError(fmt.Sprintf("failed to scan row: %v", err))
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			if _, seen := row[name]; seen {
				continue // first occurrence of a duplicate column name wins
			}
			row[name] = serializeValue(dest[i], colTypes[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, classifyQueryError(err)
	}

	return Result{Rows: out, RowCount: len(out)}, nil
}

// serializeValue converts a scanned driver value into something
// encoding/json renders safely: bytea as hex, numeric as a JSON number when
// its text parses as a finite float64 (otherwise as its text), timestamps as
// RFC3339, everything else passed through (bool/int64/float64/string/nil
// already marshal correctly; any remaining []byte is a text-ish column and
// becomes a string).
func serializeValue(v any, ct *sql.ColumnType) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		switch ct.DatabaseTypeName() {
		case "BYTEA":
			return hex.EncodeToString(val)
		case "NUMERIC":
			if f, err := strconv.ParseFloat(string(val), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return json.Number(val)
			}
		}
		return string(val)
	default:
		return val
	}
}

func classifyConnError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("query timed out")
	}
	return apperr.DatabaseError(err.Error())
}

func classifyQueryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("query timed out")
	}
	return apperr.DatabaseError(err.Error())
}
