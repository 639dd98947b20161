package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("opportunity not found"), http.StatusNotFound},
		{InvalidArgument("no relink target"), http.StatusBadRequest},
		{Conflict("concurrent transition"), http.StatusConflict},
		{New(KindForbidden, "forbidden"), http.StatusForbidden},
		{Unauthorized("unauthorized"), http.StatusUnauthorized},
		{New(KindInternal, "boom"), http.StatusInternalServerError},
		{New(KindUnknown, "??"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Kind.String())
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := NotFound("lead not found")
	wrapped := fmt.Errorf("promote lead: %w", base)

	assert.Equal(t, KindNotFound, GetKind(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Wrap(KindConflict, "version mismatch", errors.New("stale write")).WithOp("transition")

	assert.Equal(t, "transition: version mismatch: stale write", err.Error())
	assert.ErrorContains(t, errors.Unwrap(err), "stale write")
}
