package provisioner

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var namespacePattern = regexp.MustCompile(`^tenant_[0-9a-f]{32}_[A-Za-z0-9_]+$`)

func TestNewNamespace(t *testing.T) {
	t.Run("matches the shared-tenant namespace invariant", func(t *testing.T) {
		ns, err := newNamespace("Acme Corp")
		require.NoError(t, err)
		assert.Regexp(t, namespacePattern, ns)
	})

	t.Run("sanitizes characters the invariant disallows", func(t *testing.T) {
		ns, err := newNamespace("widgets & gadgets!")
		require.NoError(t, err)
		assert.Regexp(t, namespacePattern, ns)
	})

	t.Run("falls back when the name sanitizes to nothing", func(t *testing.T) {
		ns, err := newNamespace("")
		require.NoError(t, err)
		assert.Regexp(t, namespacePattern, ns)
		assert.Regexp(t, `_tenant$`, ns)
	})

	t.Run("two namespaces for the same name never collide", func(t *testing.T) {
		a, err := newNamespace("acme")
		require.NoError(t, err)
		b, err := newNamespace("acme")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
