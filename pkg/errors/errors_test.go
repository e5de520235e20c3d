package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrMissingRequiredColumn, "missing column city_data")
	require.NotNil(t, cloned)
	assert.Equal(t, "missing column city_data", cloned.Error())
	assert.True(t, errors.Is(cloned, ErrMissingRequiredColumn))
	assert.False(t, errors.Is(cloned, ErrTransport))
}

func TestWrapUnwraps(t *testing.T) {
	base := fmt.Errorf("dial tcp: refused")
	wrapped := Wrap(base, ErrTransport.Code, ErrTransport.Status, "post batch")
	assert.ErrorIs(t, wrapped, base)
	assert.ErrorIs(t, wrapped, ErrTransport)
	assert.Equal(t, "post batch: dial tcp: refused", wrapped.Error())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	typed := FromError(fmt.Errorf("outer: %w", ErrNotFound))
	assert.Equal(t, ErrNotFound.Code, typed.Code)
}
