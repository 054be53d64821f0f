package errkit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		kind      Kind
		severity  Severity
		retryable bool
	}{
		{KindValidation, SeverityWarning, false},
		{KindNotFound, SeverityWarning, false},
		{KindSecurity, SeverityError, false},
		{KindRateLimit, SeverityWarning, false},
		{KindFileSystem, SeverityError, false},
		{KindNetwork, SeverityWarning, true},
		{KindAPI, SeverityWarning, true},
		{KindConfiguration, SeverityCritical, false},
		{KindInternal, SeverityCritical, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := New(tt.kind, "boom")
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.NotEmpty(t, e.CorrelationID)
		})
	}
}

func TestNew_UnknownKindFallsBackToInternal(t *testing.T) {
	e := New(Kind("bogus"), "boom")
	assert.Equal(t, KindInternal, e.Kind)
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk on fire")
	e := Wrap(KindFileSystem, cause, "read failed")

	require.NotNil(t, e)
	assert.Equal(t, KindFileSystem, e.Kind)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "disk on fire")
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindInternal, nil, "nothing"))
}

func TestWrap_PreservesExistingClassification(t *testing.T) {
	original := New(KindSecurity, "blocked")
	wrapped := Wrap(KindInternal, fmt.Errorf("outer: %w", original), "outer")

	assert.Equal(t, KindSecurity, wrapped.Kind)
	assert.Equal(t, original.CorrelationID, wrapped.CorrelationID)
}

func TestWithContext(t *testing.T) {
	e := New(KindValidation, "bad field").
		WithContext("field", "path").
		WithContext("constraint", "required")

	assert.Equal(t, "path", e.Context["field"])
	assert.Equal(t, "required", e.Context["constraint"])
}

func TestAs_And_KindOf(t *testing.T) {
	e := New(KindRateLimit, "slow down").WithRetryAfter(2 * time.Second)
	chained := fmt.Errorf("pipeline: %w", e)

	got := As(chained)
	require.NotNil(t, got)
	assert.Equal(t, 2*time.Second, got.RetryAfter)
	assert.Equal(t, KindRateLimit, KindOf(chained))

	assert.Nil(t, As(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindNetwork, "timeout")))
	assert.False(t, IsRetryable(New(KindValidation, "bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{404, false},
		{401, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			e := FromStatusCode(tt.status, "upstream")
			assert.Equal(t, KindAPI, e.Kind)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.Context["status"])
		})
	}
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	a := New(KindInternal, "a")
	b := New(KindInternal, "b")
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
}
