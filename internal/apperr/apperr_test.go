package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeParseError, http.StatusBadRequest},
		{CodeRowLimitExceeded, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeDatabaseNotFound, http.StatusNotFound},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeDatabaseError, http.StatusInternalServerError},
		{CodeInternalError, http.StatusInternalServerError},
		{Code("BOGUS"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(string(c.code), func(t *testing.T) {
			err := New(c.code, "message")
			assert.Equal(t, c.want, err.StatusCode())
		})
	}
}

func TestIs(t *testing.T) {
	t.Run("matches the concrete type", func(t *testing.T) {
		var err error = ParseError("bad sql")
		assert.True(t, Is[*CodedError](err))
	})

	t.Run("does not match a different type", func(t *testing.T) {
		err := errors.New("plain error")
		assert.False(t, Is[*CodedError](err))
	})
}

func TestAsCoded(t *testing.T) {
	t.Run("passes through an existing CodedError", func(t *testing.T) {
		original := Unauthorized("nope")
		assert.Same(t, original, AsCoded(original))
	})

	t.Run("wraps an unmapped error as INTERNAL_ERROR", func(t *testing.T) {
		wrapped := AsCoded(errors.New("boom"))
		assert.Equal(t, CodeInternalError, wrapped.Code)
		assert.Equal(t, "boom", wrapped.Message)
	})
}
