package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperationSet(t *testing.T) {
	t.Run("grants the given operations", func(t *testing.T) {
		set := NewOperationSet([]string{"SELECT", "INSERT"})
		assert.True(t, set.Allows(OpSelect))
		assert.True(t, set.Allows(OpInsert))
		assert.False(t, set.Allows(OpDelete))
	})

	t.Run("silently drops unrecognized operation names", func(t *testing.T) {
		set := NewOperationSet([]string{"SELECT", "TRUNCATE_EVERYTHING"})
		assert.True(t, set.Allows(OpSelect))
		assert.Equal(t, []string{"SELECT"}, set.Strings())
	})

	t.Run("empty input allows nothing", func(t *testing.T) {
		set := NewOperationSet(nil)
		for _, op := range AllOperations {
			assert.False(t, set.Allows(op))
		}
	})
}

func TestOperationSetStrings(t *testing.T) {
	t.Run("round-trips through NewOperationSet in a stable order", func(t *testing.T) {
		set := NewOperationSet([]string{"DROP", "SELECT", "UPDATE"})
		assert.Equal(t, []string{"SELECT", "UPDATE", "DROP"}, set.Strings())
	})
}

func TestValidOperation(t *testing.T) {
	t.Run("accepts a member of the vocabulary", func(t *testing.T) {
		op, ok := ValidOperation("ALTER")
		assert.True(t, ok)
		assert.Equal(t, OpAlter, op)
	})

	t.Run("rejects anything else", func(t *testing.T) {
		_, ok := ValidOperation("select") // lowercase is not a vocabulary member
		assert.False(t, ok)
	})
}
