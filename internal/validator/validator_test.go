package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
)

func fullPolicy() domain.Policy {
	return domain.Policy{AllowedOps: domain.NewOperationSet([]string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "ALTER", "DROP"})}
}

func TestValidateClassifiesOperation(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want domain.Operation
	}{
		{"select", "SELECT * FROM widgets", domain.OpSelect},
		{"insert", "INSERT INTO widgets (name) VALUES ('a')", domain.OpInsert},
		{"update", "UPDATE widgets SET name = 'b' WHERE id = 1", domain.OpUpdate},
		{"delete", "DELETE FROM widgets WHERE id = 1", domain.OpDelete},
		{"create table", "CREATE TABLE widgets (id serial primary key)", domain.OpCreate},
		{"alter table", "ALTER TABLE widgets ADD COLUMN note text", domain.OpAlter},
		{"drop table", "DROP TABLE widgets", domain.OpDrop},
		{"truncate", "TRUNCATE widgets", domain.OpDrop},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := Validate(c.sql, fullPolicy())
			require.NoError(t, err)
			assert.Equal(t, c.want, v.Operation)
			assert.Equal(t, c.sql, v.SQL)
		})
	}
}

func TestValidateRejectsEmptyInput(t *testing.T) {
	_, err := Validate("   ", fullPolicy())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, err.(*apperr.CodedError).Code)
}

func TestValidateRejectsMultipleStatements(t *testing.T) {
	_, err := Validate("SELECT 1; SELECT 2", fullPolicy())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, err.(*apperr.CodedError).Code)
}

func TestValidateRejectsUnparseableSQL(t *testing.T) {
	_, err := Validate("SELEKT * FROM widgets", fullPolicy())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, err.(*apperr.CodedError).Code)
}

func TestValidateEnforcesPolicy(t *testing.T) {
	readOnly := domain.Policy{AllowedOps: domain.NewOperationSet([]string{"SELECT"})}
	_, err := Validate("UPDATE widgets SET name = 'x'", readOnly)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, err.(*apperr.CodedError).Code)
}

func TestValidateRejectsQualifiedNames(t *testing.T) {
	_, err := Validate("SELECT * FROM other_schema.widgets", fullPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qualified name not allowed")
}

func TestValidateAllowsPostgateHelpers(t *testing.T) {
	v, err := Validate("SELECT * FROM postgate_helpers.list_tables()", fullPolicy())
	require.NoError(t, err)
	assert.Equal(t, domain.OpSelect, v.Operation)
}

func TestValidateRejectsSystemObjects(t *testing.T) {
	_, err := Validate("SELECT * FROM pg_catalog.pg_class", fullPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestValidateAllowsTableQualifiedColumns(t *testing.T) {
	cases := []string{
		"SELECT t.x FROM t",
		"SELECT u.id FROM users u WHERE u.active",
		"SELECT a.id, b.name FROM a JOIN b ON a.b_id = b.id",
	}
	for _, sql := range cases {
		t.Run(sql, func(t *testing.T) {
			_, err := Validate(sql, fullPolicy())
			require.NoError(t, err)
		})
	}
}

func TestValidateRejectsSystemObjectAsTableQualifier(t *testing.T) {
	_, err := Validate("SELECT pg_class.relname FROM pg_class", fullPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestValidateRejectsSchemaQualifiedColumn(t *testing.T) {
	_, err := Validate("SELECT other_schema.widgets.id FROM other_schema.widgets", fullPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qualified name not allowed")
}

func TestValidateRejectsUnsupportedStatementKind(t *testing.T) {
	_, err := Validate("VACUUM widgets", fullPolicy())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, err.(*apperr.CodedError).Code)
}
