package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed migrations/001_schema.sql
var schemaMigration string

//go:embed migrations/002_admin_functions.sql
var adminFunctionsMigration string

//go:embed migrations/003_helpers.sql
var helpersMigration string

// migrations runs in order at startup. Each file is idempotent
// (CREATE ... IF NOT EXISTS / CREATE OR REPLACE) so re-running on an
// already-migrated database is a no-op.
var migrations = []string{schemaMigration, adminFunctionsMigration, helpersMigration}

// Migrate applies all embedded migrations. A failure here is a startup
// failure per spec.md §6's exit-code table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
