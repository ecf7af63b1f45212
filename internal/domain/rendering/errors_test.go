package rendering

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := NewError(KindPoolTimeout, "timed out", nil)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindPoolTimeout, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	inner := NewError(KindRenderPDF, "pdf failed", nil)
	wrapped := fmt.Errorf("pipeline stage: %w", inner)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindRenderPDF, kind)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(KindPoolTimeout))
	assert.True(t, Retryable(KindTemplateParse))
	assert.False(t, Retryable(KindCancelled))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(KindRenderLoad, "load failed", cause)
	assert.ErrorIs(t, err, cause)
}
