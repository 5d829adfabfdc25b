package verrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	ve := New(KindNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, ve)
	assert.Equal(t, originalErr, errors.Unwrap(ve))
	assert.True(t, errors.Is(ve, originalErr))
}

func TestVError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		message  string
		expected string
	}{
		{"configuration", KindConfiguration, "model not loaded", "[CONFIGURATION] model not loaded"},
		{"not found", KindNotFound, "file.go not found", "[NOT_FOUND] file.go not found"},
		{"transient", KindTransient, "no subscribers", "[TRANSIENT] no subscribers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestVError_Is_MatchesByKind(t *testing.T) {
	a := New(KindAlreadyExists, "dup id", nil)
	b := New(KindAlreadyExists, "different message, same kind", nil)
	c := New(KindNotFound, "dup id", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestSeverityAndRetryableDerivedFromKind(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(KindConfiguration, "x", nil).Severity)
	assert.Equal(t, SeverityFatal, New(KindCorruption, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(KindTransient, "x", nil).Severity)
	assert.Equal(t, SeverityError, New(KindNotFound, "x", nil).Severity)

	assert.True(t, IsRetryable(New(KindTransient, "x", nil)))
	assert.False(t, IsRetryable(New(KindInternal, "x", nil)))

	assert.True(t, IsFatal(New(KindCorruption, "x", nil)))
	assert.False(t, IsFatal(New(KindNotFound, "x", nil)))
}

func TestWithDetail_ChainsAndAccumulates(t *testing.T) {
	err := New(KindInvalidArgument, "bad query", nil).
		WithDetail("query", "").
		WithDetail("k", "-1")

	require.Len(t, err.Details, 2)
	assert.Equal(t, "", err.Details["query"])
	assert.Equal(t, "-1", err.Details["k"])
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, nil))
}

func TestGetKind_NonVErrorReturnsEmpty(t *testing.T) {
	assert.Equal(t, Kind(""), GetKind(errors.New("plain")))
}
