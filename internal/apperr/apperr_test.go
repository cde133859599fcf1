package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPassesThroughClassifiedErrors(t *testing.T) {
	orig := New(KindConflict, "email already exists")

	got := From(fmt.Errorf("register: %w", orig))

	assert.Same(t, orig, got)
	assert.Equal(t, http.StatusConflict, got.Status())
}

func TestFromHidesUnclassifiedErrors(t *testing.T) {
	cause := errors.New("pq: connection refused")

	got := From(cause)

	assert.Equal(t, KindInternal, got.Kind)
	assert.NotContains(t, got.Message, "pq:")
	assert.ErrorIs(t, got, cause)
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindBadRequest:      http.StatusBadRequest,
		KindUnauthorized:    http.StatusUnauthorized,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindGone:            http.StatusGone,
		KindTooManyRequests: http.StatusTooManyRequests,
		KindGatewayTimeout:  http.StatusGatewayTimeout,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").Status())
	}
}
