package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMint(t *testing.T) {
	t.Run("produces a secret matching the wire shape", func(t *testing.T) {
		secret, err := Mint()
		require.NoError(t, err)
		assert.True(t, ValidShape(secret))
		assert.Len(t, secret, secretLen)
	})

	t.Run("two mints never collide", func(t *testing.T) {
		a, err := Mint()
		require.NoError(t, err)
		b, err := Mint()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestHash(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		secret, err := Mint()
		require.NoError(t, err)
		assert.Equal(t, Hash(secret), Hash(secret))
	})

	t.Run("different secrets hash differently", func(t *testing.T) {
		a, _ := Mint()
		b, _ := Mint()
		assert.NotEqual(t, Hash(a), Hash(b))
	})

	t.Run("never equals or contains the plaintext secret", func(t *testing.T) {
		secret, _ := Mint()
		hash := Hash(secret)
		assert.NotEqual(t, secret, hash)
		assert.NotContains(t, hash, secret)
	})
}

func TestPrefix(t *testing.T) {
	t.Run("returns the first 8 characters", func(t *testing.T) {
		secret, err := Mint()
		require.NoError(t, err)
		assert.Equal(t, secret[:prefixLen], Prefix(secret))
		assert.Len(t, Prefix(secret), prefixLen)
	})

	t.Run("guards against short input", func(t *testing.T) {
		assert.Equal(t, "ab", Prefix("ab"))
	})
}

func TestValidShape(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"well-formed secret", "pg_" + repeat("a1b2c3d4", 8), true},
		{"wrong prefix", "xx_" + repeat("a1b2c3d4", 8), false},
		{"too short", "pg_abc", false},
		{"uppercase hex rejected", "pg_" + repeat("A1B2C3D4", 8), false},
		{"empty string", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidShape(c.input))
		})
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
