// Integration suite for the Executor: a real PostgreSQL instance via
// testcontainers-go, the tenant-scoped transaction bracket and row-cap peek
// exercised end to end rather than mocked.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/connprovider"
	"github.com/postgate/postgate/internal/domain"
	"github.com/postgate/postgate/internal/validator"
)

var hostDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("postgate_exec_test"),
		postgres.WithUsername("postgate"),
		postgres.WithPassword("postgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(15*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("failed to get container host: %v", err)
	}
	portStr, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("failed to get container port: %v", err)
	}
	port, _ := strconv.Atoi(portStr.Port())

	dsn := fmt.Sprintf("postgres://postgate:postgate@%s:%d/postgate_exec_test?sslmode=disable", host, port)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE SCHEMA tenant_test;
		CREATE TABLE tenant_test.widgets (id serial primary key, name text, blob bytea, created_at timestamptz default now());
		INSERT INTO tenant_test.widgets (name, blob) VALUES ('a', E'\\xdeadbeef'), ('b', NULL), ('c', NULL);
	`); err != nil {
		log.Fatalf("failed to seed schema: %v", err)
	}

	hostDB = db
	code := m.Run()

	db.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("error terminating container: %v", err)
	}
	os.Exit(code)
}

func testTenant(rowCap int) domain.Tenant {
	return domain.Tenant{ID: uuid.New(), Backend: domain.SharedBackend("tenant_test"), RowCap: rowCap}
}

func fullPolicy() domain.Policy {
	return domain.Policy{AllowedOps: domain.NewOperationSet([]string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "ALTER", "DROP"})}
}

func TestExecuteReturnsRowsWithinCap(t *testing.T) {
	provider := connprovider.New(hostDB, 5*time.Second)
	exec := New(provider, nil, 5*time.Second)

	v, err := validator.Validate("SELECT id, name, blob FROM widgets WHERE name IN ('a', 'b') ORDER BY id", fullPolicy())
	require.NoError(t, err)

	res, err := exec.Execute(context.Background(), testTenant(2), uuid.New(), v, nil, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)
	require.Equal(t, "a", res.Rows[0]["name"])
	require.Equal(t, "deadbeef", res.Rows[0]["blob"])
	require.Nil(t, res.Rows[1]["blob"])
}

func TestExecuteRejectsOverCapResult(t *testing.T) {
	provider := connprovider.New(hostDB, 5*time.Second)
	exec := New(provider, nil, 5*time.Second)

	v, err := validator.Validate("SELECT id FROM widgets", fullPolicy())
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), testTenant(2), uuid.New(), v, nil, 2)
	require.Error(t, err)
	coded, ok := err.(*apperr.CodedError)
	require.True(t, ok)
	require.Equal(t, apperr.CodeRowLimitExceeded, coded.Code)
}
