package provisioner

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/postgate/postgate/internal/apperr"
)

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_]`)

// newNamespace builds a schema name matching the invariant every Shared
// tenant's namespace satisfies: tenant_<32 hex>_<sanitized name>. The random
// component, not the name, guarantees uniqueness; the name survives only for
// readability when browsing \dn output. Mirrors the PL/pgSQL
// create_tenant_database function's naming scheme so Go- and SQL-side
// provisioning produce identically shaped namespaces.
func newNamespace(name string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.InternalError(fmt.Sprintf("failed to generate namespace suffix: %v", err))
	}
	sanitized := sanitizePattern.ReplaceAllString(name, "_")
	if sanitized == "" {
		sanitized = "tenant"
	}
	return fmt.Sprintf("tenant_%s_%s", hex.EncodeToString(buf), sanitized), nil
}
