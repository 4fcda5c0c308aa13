package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
)

const uniqueViolation = "23505"

// CreateTenant inserts a new tenant row. A duplicate shared namespace fails
// with a DATABASE_ERROR-coded error naming the namespace, and a backend of
// unknown kind with an INTERNAL_ERROR-coded one; there is no separate
// conflict error kind.
func (s *Storage) CreateTenant(ctx context.Context, name string, backend domain.Backend, rowCap int) (domain.Tenant, error) {
	if backend.Kind != domain.BackendShared && backend.Kind != domain.BackendDedicated {
		return domain.Tenant{}, apperr.New(apperr.CodeInternalError, "invalid backend variant")
	}

	t := domain.Tenant{
		ID:        uuid.New(),
		Name:      name,
		Backend:   backend,
		RowCap:    rowCap,
		CreatedAt: time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertTenant(ctx, tx, t)
	})
	if err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}

func (s *Storage) insertTenant(ctx context.Context, q Querier, t domain.Tenant) error {
	var schemaName, connString sql.NullString
	backendType := "dedicated"
	if t.Backend.Kind == domain.BackendShared {
		backendType = "schema"
		schemaName = sql.NullString{String: t.Backend.Namespace, Valid: true}
	} else {
		connString = sql.NullString{String: t.Backend.DSN, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO postgate_databases (id, name, backend_type, schema_name, connection_string, max_rows, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, backendType, schemaName, connString, t.RowCap, t.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperr.New(apperr.CodeDatabaseError, fmt.Sprintf("tenant namespace %q already exists", t.Backend.Namespace))
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// DeleteTenant deletes the tenant row, returning whether a row existed.
// Cascades tokens via the foreign key; does not touch backend namespaces
// (that is the Provisioner's job).
func (s *Storage) DeleteTenant(ctx context.Context, id uuid.UUID) (bool, error) {
	var existed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM postgate_databases WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		existed = n > 0
		return nil
	})
	return existed, err
}

// GetTenant fetches a tenant by id, reporting whether it was found.
func (s *Storage) GetTenant(ctx context.Context, id uuid.UUID) (domain.Tenant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, backend_type, schema_name, connection_string, max_rows, created_at
		FROM postgate_databases WHERE id = $1`, id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tenant{}, false, nil
	}
	if err != nil {
		return domain.Tenant{}, false, fmt.Errorf("get tenant: %w", err)
	}
	return t, true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var (
		t                      domain.Tenant
		backendType            string
		schemaName, connString sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &backendType, &schemaName, &connString, &t.RowCap, &t.CreatedAt); err != nil {
		return domain.Tenant{}, err
	}
	if backendType == "schema" {
		t.Backend = domain.SharedBackend(schemaName.String)
	} else {
		t.Backend = domain.DedicatedBackend(connString.String)
	}
	return t, nil
}

// CreateToken inserts a new token bound to tenantID. Fails with a
// DATABASE_NOT_FOUND-coded error if the tenant is absent, and with a
// DATABASE_ERROR-coded error on a (tenant_id, name) clash; there is no
// separate conflict error kind.
func (s *Storage) CreateToken(ctx context.Context, tenantID uuid.UUID, name string, perms domain.OperationSet, hash, prefix string) (domain.Token, error) {
	if hash == "" {
		return domain.Token{}, apperr.New(apperr.CodeInternalError, "token hash must not be empty")
	}
	if name == "" {
		name = domain.DefaultTokenName
	}

	tok := domain.Token{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        name,
		Hash:        hash,
		Prefix:      prefix,
		Permissions: perms,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertToken(ctx, tx, tok)
	})
	if err != nil {
		return domain.Token{}, err
	}
	return tok, nil
}

// insertToken inserts tok, checking the parent tenant exists first. Shared
// between CreateToken's own transaction and ProvisionTenant's combined one.
func (s *Storage) insertToken(ctx context.Context, q Querier, tok domain.Token) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM postgate_databases WHERE id = $1)`, tok.TenantID).Scan(&exists); err != nil {
		return fmt.Errorf("check tenant exists: %w", err)
	}
	if !exists {
		return apperr.New(apperr.CodeDatabaseNotFound, "tenant not found")
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO postgate_tokens (id, database_id, name, token_hash, token_prefix, allowed_operations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tok.ID, tok.TenantID, tok.Name, tok.Hash, tok.Prefix, pq.Array(tok.Permissions.Strings()), tok.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperr.New(apperr.CodeDatabaseError, fmt.Sprintf("token name %q already exists for this tenant", tok.Name))
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ProvisionTenant creates a tenant row and its first token in a single
// transaction, running ddl (if non-empty) beforehand in the same transaction
// so a failure anywhere in the sequence leaves no orphan namespace or row —
// mirroring the teacher's CreateBoard, which composes partition DDL and its
// metadata insert inside one withTx instead of running them separately.
func (s *Storage) ProvisionTenant(ctx context.Context, t domain.Tenant, tok domain.Token, ddl string) (domain.Tenant, domain.Token, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if ddl != "" {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return apperr.DatabaseError(fmt.Sprintf("failed to provision tenant schema: %v", err))
			}
		}
		if err := s.insertTenant(ctx, tx, t); err != nil {
			return err
		}
		return s.insertToken(ctx, tx, tok)
	})
	if err != nil {
		return domain.Tenant{}, domain.Token{}, err
	}
	return t, tok, nil
}

// DeleteToken deletes the token row, returning whether a row existed.
func (s *Storage) DeleteToken(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM postgate_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindTokenByHash is the hot path the Auth Middleware calls on every
// request: an indexed lookup joining Token and Tenant.
func (s *Storage) FindTokenByHash(ctx context.Context, hash string) (domain.Token, domain.Tenant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			t.id, t.database_id, t.name, t.token_hash, t.token_prefix, t.allowed_operations, t.created_at, t.last_used_at,
			d.id, d.name, d.backend_type, d.schema_name, d.connection_string, d.max_rows, d.created_at
		FROM postgate_tokens t
		JOIN postgate_databases d ON d.id = t.database_id
		WHERE t.token_hash = $1`, hash)

	var (
		tok                    domain.Token
		perms                  pq.StringArray
		tenantID               uuid.UUID
		tenantName             string
		backendType            string
		schemaName, connString sql.NullString
		rowCap                 int
		tenantCreatedAt        time.Time
	)
	err := row.Scan(
		&tok.ID, &tok.TenantID, &tok.Name, &tok.Hash, &tok.Prefix, &perms, &tok.CreatedAt, &tok.LastUsedAt,
		&tenantID, &tenantName, &backendType, &schemaName, &connString, &rowCap, &tenantCreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Token{}, domain.Tenant{}, false, nil
	}
	if err != nil {
		return domain.Token{}, domain.Tenant{}, false, fmt.Errorf("find token by hash: %w", err)
	}

	tok.Permissions = domain.NewOperationSet([]string(perms))

	tenant := domain.Tenant{ID: tenantID, Name: tenantName, RowCap: rowCap, CreatedAt: tenantCreatedAt}
	if backendType == "schema" {
		tenant.Backend = domain.SharedBackend(schemaName.String)
	} else {
		tenant.Backend = domain.DedicatedBackend(connString.String)
	}

	return tok, tenant, true, nil
}

// TouchToken is a best-effort update of last_used_at. Failures are never
// user-visible (§7): the caller (the touch queue) only logs them.
func (s *Storage) TouchToken(ctx context.Context, id uuid.UUID, when time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE postgate_tokens SET last_used_at = $2 WHERE id = $1`, id, when)
	return err
}
