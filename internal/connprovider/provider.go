// Package connprovider implements the Connection Provider (component D): it
// hands the Executor a session bound to a tenant's backend, sharing the host
// pool for Shared-schema tenants and lazily opening (and caching) a second
// pool per Dedicated tenant.
//
// Grounded on the teacher's single shared *sql.DB pool
// (internal/storage/pg.Connect), generalized here to many pools keyed by
// DSN, guarded the same way internal/service/blacklist_cache.go guards its
// in-memory cache: a mutex around a map, looked up on the hot path.
package connprovider

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
)

// TxBeginner is the subset of *sql.DB/*sql.Conn a Session needs; a Session
// for a Shared backend holds a single borrowed *sql.Conn (so its acquisition
// can be bounded by acquireWait), while a Dedicated backend hands back its
// whole pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Session is a handle on a tenant's backend: a single borrowed connection
// for Shared backends, or the dedicated pool itself for Dedicated ones.
// Namespace names the schema the caller binds with SET LOCAL search_path
// inside its own transaction; the Session does not bind it.
type Session struct {
	DB        TxBeginner
	Namespace string // non-empty only for Shared backends

	conn *sql.Conn // non-nil only for a Shared backend; released by Close
}

// Close releases a Shared backend's borrowed connection back to the host
// pool. A no-op for Dedicated backends, which hand back the pool itself.
func (s Session) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Provider owns the host pool and the set of dedicated pools opened so far.
type Provider struct {
	host *sql.DB

	mu          sync.Mutex
	dedicated   map[string]*sql.DB
	acquireWait time.Duration
}

// New builds a Provider around the already-connected host pool (the same
// pool the Metadata Store uses — Shared tenants live as schemas inside it).
func New(host *sql.DB, acquireWait time.Duration) *Provider {
	return &Provider{
		host:        host,
		dedicated:   make(map[string]*sql.DB),
		acquireWait: acquireWait,
	}
}

// Acquire returns a Session for tenant's backend. For a Shared backend, a
// connection is checked out of the host pool within acquireWait — a pool
// saturated with long-running queries fails the caller with UNAVAILABLE
// instead of blocking indefinitely. For a Dedicated backend whose pool
// doesn't exist yet, it is opened and verified on first use and cached for
// subsequent callers, bounded the same way against a wedged network
// partition to the dedicated host.
func (p *Provider) Acquire(ctx context.Context, tenant domain.Tenant) (Session, error) {
	if tenant.Backend.Kind == domain.BackendShared {
		acquireCtx, cancel := context.WithTimeout(ctx, p.acquireWait)
		defer cancel()
		conn, err := p.host.Conn(acquireCtx)
		if err != nil {
			return Session{}, apperr.Unavailable(fmt.Sprintf("session pool exhausted: %v", err))
		}
		return Session{DB: conn, Namespace: tenant.Backend.Namespace, conn: conn}, nil
	}

	db, err := p.dedicatedPool(ctx, tenant.Backend.DSN)
	if err != nil {
		return Session{}, err
	}
	return Session{DB: db}, nil
}

func (p *Provider) dedicatedPool(ctx context.Context, dsn string) (*sql.DB, error) {
	p.mu.Lock()
	if db, ok := p.dedicated[dsn]; ok {
		p.mu.Unlock()
		return db, nil
	}
	p.mu.Unlock()

	type result struct {
		db  *sql.DB
		err error
	}
	done := make(chan result, 1)
	go func() {
		db, err := openDedicated(dsn)
		done <- result{db, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, apperr.Unavailable(fmt.Sprintf("dedicated backend unreachable: %v", r.err))
		}
		p.mu.Lock()
		if existing, ok := p.dedicated[dsn]; ok {
			p.mu.Unlock()
			r.db.Close()
			return existing, nil
		}
		p.dedicated[dsn] = r.db
		p.mu.Unlock()
		return r.db, nil
	case <-time.After(p.acquireWait):
		return nil, apperr.Unavailable("session pool exhausted: timed out opening dedicated backend")
	case <-ctx.Done():
		return nil, apperr.Unavailable("session pool exhausted: " + ctx.Err().Error())
	}
}

func openDedicated(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Cleanup closes every dedicated pool opened so far. The host pool is owned
// by the Metadata Store and is not closed here.
func (p *Provider) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, db := range p.dedicated {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
