package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackendKind tags which variant of Backend is populated.
type BackendKind string

const (
	BackendShared    BackendKind = "shared"
	BackendDedicated BackendKind = "dedicated"
)

// Backend is the tagged sum type `{ Shared{namespace}, Dedicated{dsn} }` from
// the data model, collapsing the nullable-columns persistence representation
// into a Kind tag. The SharedBackend and DedicatedBackend constructors
// populate exactly one of Namespace/DSN, matching Kind; the struct itself
// does not stop a caller from setting both.
type Backend struct {
	Kind      BackendKind
	Namespace string // populated iff Kind == BackendShared
	DSN       string // populated iff Kind == BackendDedicated
}

func SharedBackend(namespace string) Backend {
	return Backend{Kind: BackendShared, Namespace: namespace}
}

func DedicatedBackend(dsn string) Backend {
	return Backend{Kind: BackendDedicated, DSN: dsn}
}

// Tenant is a logical database: either an isolated namespace in the host
// cluster, or a connection string to an external database.
type Tenant struct {
	ID          uuid.UUID
	Name        string
	Backend     Backend
	RowCap      int
	CreatedAt   time.Time
}
