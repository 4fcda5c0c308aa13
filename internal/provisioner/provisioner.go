// Package provisioner implements the Tenant Provisioner (component H): it
// composes the Metadata Store and schema DDL into a single atomic
// create/delete-tenant operation, the same way the teacher's CreateBoard and
// DeleteBoard compose metadata rows with partition/view DDL
// (backend/internal/storage/pg/board.go) inside one transaction.
package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
	"github.com/postgate/postgate/internal/token"
)

// Store is the subset of the Metadata Store the provisioner drives.
type Store interface {
	DB() *sql.DB
	ProvisionTenant(ctx context.Context, t domain.Tenant, tok domain.Token, ddl string) (domain.Tenant, domain.Token, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) (bool, error)
}

// Provisioner creates and tears down tenants: a Shared tenant additionally
// gets its own PostgreSQL schema inside the host database; a Dedicated
// tenant's namespace lives on its own server and is assumed pre-provisioned
// (Postgate only records its DSN).
type Provisioner struct {
	store Store
}

func New(store Store) *Provisioner {
	return &Provisioner{store: store}
}

// CreateShared provisions a schema-per-tenant namespace, its metadata row,
// and a first token with the given permissions, all in one transaction: if
// the tenant insert or token insert fails, the schema-creating DDL rolls
// back with it, leaving no orphan namespace.
func (p *Provisioner) CreateShared(ctx context.Context, name string, rowCap int, perms domain.OperationSet) (domain.Tenant, string, error) {
	namespace, err := newNamespace(name)
	if err != nil {
		return domain.Tenant{}, "", err
	}

	ddl := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(namespace))
	return p.provision(ctx, name, domain.SharedBackend(namespace), rowCap, perms, ddl)
}

// CreateDedicated records a tenant backed by an externally managed server,
// plus a first token, in one transaction.
func (p *Provisioner) CreateDedicated(ctx context.Context, name, dsn string, rowCap int, perms domain.OperationSet) (domain.Tenant, string, error) {
	return p.provision(ctx, name, domain.DedicatedBackend(dsn), rowCap, perms, "")
}

func (p *Provisioner) provision(ctx context.Context, name string, backend domain.Backend, rowCap int, perms domain.OperationSet, ddl string) (domain.Tenant, string, error) {
	secret, err := token.Mint()
	if err != nil {
		return domain.Tenant{}, "", apperr.InternalError(err.Error())
	}

	tenant := domain.Tenant{
		ID:        uuid.New(),
		Name:      name,
		Backend:   backend,
		RowCap:    rowCap,
		CreatedAt: time.Now().UTC(),
	}
	tok := domain.Token{
		ID:          uuid.New(),
		TenantID:    tenant.ID,
		Name:        domain.DefaultTokenName,
		Hash:        token.Hash(secret),
		Prefix:      token.Prefix(secret),
		Permissions: perms,
		CreatedAt:   tenant.CreatedAt,
	}

	tenant, _, err = p.store.ProvisionTenant(ctx, tenant, tok, ddl)
	if err != nil {
		return domain.Tenant{}, "", err
	}
	return tenant, secret, nil
}

// Delete removes a tenant's metadata (cascading its tokens) and, for a
// Shared tenant, drops its schema. Returns whether the tenant existed.
// The two steps are not one transaction: the metadata delete commits first
// and the schema is dropped afterwards, so a failed drop returns an error
// with the tenant row already gone and the schema still in place.
func (p *Provisioner) Delete(ctx context.Context, tenant domain.Tenant) (bool, error) {
	existed, err := p.store.DeleteTenant(ctx, tenant.ID)
	if err != nil || !existed {
		return existed, err
	}

	if tenant.Backend.Kind == domain.BackendShared {
		stmt := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(tenant.Backend.Namespace))
		if _, err := p.store.DB().ExecContext(ctx, stmt); err != nil {
			return true, apperr.DatabaseError(fmt.Sprintf("failed to drop tenant schema: %v", err))
		}
	}

	return true, nil
}
