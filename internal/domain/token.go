package domain

import (
	"time"

	"github.com/google/uuid"
)

// Token is a credential bound to one Tenant. Only Hash is ever persisted —
// the plaintext secret is returned once at creation and is then unrecoverable.
type Token struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Hash       string
	Prefix     string
	Permissions OperationSet
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// DefaultTokenName is the name assigned when a caller does not supply one.
const DefaultTokenName = "default"

// Policy is the tuple derived by joining a Token with its Tenant at auth
// time: {tenant, allowed_ops, backend, row_cap}. It is never persisted
// directly.
type Policy struct {
	TenantID   uuid.UUID
	AllowedOps OperationSet
	Backend    Backend
	RowCap     int
}
