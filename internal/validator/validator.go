// Package validator implements the SQL Validator (component C): it parses a
// caller's SQL through PostgreSQL's own grammar, classifies it into the
// closed operation vocabulary, checks it against a tenant's policy, and
// rejects anything that reaches outside the tenant's own namespace.
//
// Parsing uses pg_query_go, a Go binding over libpg_query (the same grammar
// PostgreSQL itself compiles from) rather than a hand-rolled SQL parser —
// the teacher's storage layer never needed to parse arbitrary caller SQL, so
// this package's grounding comes from the rest of the retrieval pack
// (pg-lock-check's analyzer and WeKnora's database-query tool), both of
// which validate caller SQL the same way: parse, require exactly one
// statement, walk the AST for disallowed references.
package validator

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/postgate/postgate/internal/apperr"
	"github.com/postgate/postgate/internal/domain"
)

// HelperSchema is the one schema-qualified reference the validator accepts:
// the SECURITY DEFINER utility functions every tenant namespace can reach.
// The Executor binds it onto every tenant session's search_path so those
// functions resolve unqualified too.
const HelperSchema = "postgate_helpers"

// Validated is the result of successfully validating a statement.
type Validated struct {
	Operation domain.Operation
	// SQL is the caller's statement, unchanged. Postgate executes the
	// original text (not a deparsed/normalized form) so that parameter
	// placeholders the caller wrote line up exactly as given.
	SQL string
}

// Validate parses sql, ensures it is a single supported statement, checks
// its classified operation against policy, and rejects any reference to an
// object outside the caller's own namespace.
func Validate(sql string, policy domain.Policy) (Validated, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Validated{}, apperr.ParseError("empty statement")
	}

	result, err := pg_query.Parse(sql)
	if err != nil {
		return Validated{}, apperr.ParseError(fmt.Sprintf("parse error: %v", err))
	}

	if len(result.Stmts) == 0 {
		return Validated{}, apperr.ParseError("empty statement")
	}
	if len(result.Stmts) > 1 {
		return Validated{}, apperr.ParseError("multiple statements are not allowed")
	}

	root := result.Stmts[0].Stmt

	op, ok := classify(root)
	if !ok {
		return Validated{}, apperr.ParseError("unsupported statement kind")
	}

	if !policy.AllowedOps.Allows(op) {
		return Validated{}, apperr.ParseError(fmt.Sprintf("operation denied: %s", op))
	}

	if err := checkReferences(root); err != nil {
		return Validated{}, err
	}

	return Validated{Operation: op, SQL: sql}, nil
}

// classify maps a parsed statement onto the closed operation vocabulary.
// Grounded on the teacher-adjacent pg-lock-check analyzer's switch over
// node.Node, generalized to Postgate's coarser DDL grouping (any of
// CREATE TABLE/INDEX/VIEW collapses to CREATE; DROP TABLE and TRUNCATE both
// collapse to DROP, since both remove data/objects under the spec's model).
func classify(node *pg_query.Node) (domain.Operation, bool) {
	switch node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return domain.OpSelect, true
	case *pg_query.Node_InsertStmt:
		return domain.OpInsert, true
	case *pg_query.Node_UpdateStmt:
		return domain.OpUpdate, true
	case *pg_query.Node_DeleteStmt:
		return domain.OpDelete, true
	case *pg_query.Node_CreateStmt, *pg_query.Node_IndexStmt, *pg_query.Node_ViewStmt:
		return domain.OpCreate, true
	case *pg_query.Node_AlterTableStmt:
		return domain.OpAlter, true
	case *pg_query.Node_DropStmt, *pg_query.Node_TruncateStmt:
		return domain.OpDrop, true
	default:
		return "", false
	}
}

// checkReferences walks every node in the statement looking for a
// schema-qualified table, column, or function reference that isn't
// postgate_helpers, or a bare reference into pg_catalog/information_schema
// by name. Everything else resolves against current_schema(), which the
// Executor binds to the tenant's own namespace via search_path, so
// an unqualified reference can never cross tenants.
func checkReferences(root *pg_query.Node) error {
	var walkErr error
	walk(root, func(m proto.Message) bool {
		if walkErr != nil {
			return false
		}
		switch n := m.(type) {
		case *pg_query.RangeVar:
			if n.Schemaname != "" {
				if walkErr = qualifiedNameErr(n.Schemaname, n.Relname); walkErr != nil {
					return false
				}
			}
			if isSystemObject(n.Relname) {
				walkErr = systemObjectErr(n.Relname)
				return false
			}
		case *pg_query.ColumnRef:
			parts := stringParts(n.Fields)
			// A 2-part chain is table.column, not a schema escape — only
			// 3+ parts (schema.table.column) qualify into another schema.
			if len(parts) >= 3 {
				schema := parts[len(parts)-3]
				if !strings.EqualFold(schema, HelperSchema) {
					walkErr = qualifiedNameErr(schema, parts[len(parts)-2])
					return false
				}
			}
			for _, p := range parts {
				if isSystemObject(p) {
					walkErr = systemObjectErr(p)
					return false
				}
			}
		case *pg_query.FuncCall:
			if schema, name, ok := splitQualifiedFields(n.Funcname); ok {
				if walkErr = qualifiedNameErr(schema, name); walkErr != nil {
					return false
				}
			}
			for _, p := range stringParts(n.Funcname) {
				if isSystemObject(p) {
					walkErr = systemObjectErr(p)
					return false
				}
			}
		case *pg_query.TypeName:
			if len(n.Names) > 0 {
				if _, name, ok := splitQualifiedFields(n.Names); ok && isSystemObject(name) {
					walkErr = systemObjectErr(name)
					return false
				}
			}
		}
		return true
	})
	return walkErr
}

func qualifiedNameErr(schema, name string) error {
	if strings.EqualFold(schema, HelperSchema) {
		return nil
	}
	return apperr.ParseError(fmt.Sprintf("qualified name not allowed: %s.%s", schema, name))
}

func systemObjectErr(name string) error {
	return apperr.ParseError(fmt.Sprintf("system object not allowed: %s", name))
}

func isSystemObject(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "pg_") || lower == "information_schema"
}

// stringParts reads a pg_query dotted-name list (ColumnRef.Fields,
// FuncCall.Funcname, TypeName.Names — each a []*Node of String nodes) into
// its plain string components, in order.
func stringParts(fields []*pg_query.Node) []string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := f.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}
	return parts
}

// splitQualifiedFields reports the schema-qualifying prefix of a dotted name
// list when there is one. Used for FuncCall/TypeName, where a function or
// type has no table component of its own, so any 2-part chain is already
// schema.name.
func splitQualifiedFields(fields []*pg_query.Node) (schema, name string, qualified bool) {
	parts := stringParts(fields)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[len(parts)-2], parts[len(parts)-1], true
}

// walk recursively visits every protobuf message embedded in m (and m
// itself), calling visit on each. visit returns false to stop descending
// into that node's children (used once an error is found, to short-circuit
// the rest of the tree). pg_query_go's AST is plain generated protobuf, so
// reflecting over message fields finds every nested Node without a
// hand-written visitor per statement kind.
func walk(m proto.Message, visit func(proto.Message) bool) {
	if m == nil {
		return
	}
	if !visit(m) {
		return
	}

	rm := m.ProtoReflect()
	rm.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Kind() != protoreflect.MessageKind {
			return true
		}
		if fd.IsList() {
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				walkValue(list.Get(i), visit)
			}
			return true
		}
		if fd.IsMap() {
			return true
		}
		walkValue(v, visit)
		return true
	})
}

func walkValue(v protoreflect.Value, visit func(proto.Message) bool) {
	msg := v.Message()
	if !msg.IsValid() {
		return
	}
	walk(msg.Interface(), visit)
}
