package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStringIncludesKindAndMessage(t *testing.T) {
	err := New(NotFound, "concept not found")
	assert.Equal(t, "NOT_FOUND: concept not found", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ProviderUnavailable, "embed call failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfUnwrapsNestedChains(t *testing.T) {
	inner := New(DimensionMismatch, "768 != 1536")
	wrapped := fmt.Errorf("while verifying: %w", inner)
	assert.Equal(t, DimensionMismatch, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("opaque")))
}

func TestKindOfNil(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRetryableKinds(t *testing.T) {
	assert.True(t, ProviderUnavailable.Retryable())
	assert.True(t, Timeout.Retryable())
	for _, k := range []Kind{NotFound, Conflict, DimensionMismatch, UnknownVocabType,
		Stale, IntegrityError, ProviderInvalid, QuotaExceeded, Cancelled, Internal, Validation} {
		assert.False(t, k.Retryable(), "kind %s must not retry", k)
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := New(Stale, "source hash changed")
	require.True(t, errors.Is(err, New(Stale, "different message")))
	assert.False(t, errors.Is(err, New(NotFound, "x")))
}
