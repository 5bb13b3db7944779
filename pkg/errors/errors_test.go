package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("import: %w", ErrNoCourses)
	got := FromError(wrapped)
	assert.Equal(t, "NO_COURSES", got.Code)
	assert.Equal(t, http.StatusBadRequest, got.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, "internal server error: boom", got.Error())
	assert.Nil(t, FromError(nil))
}

func TestCloneMatchesOriginal(t *testing.T) {
	clone := Clone(ErrInvalidPlacement, "exam cannot start at 16:30")
	assert.True(t, stderrors.Is(clone, ErrInvalidPlacement))
	assert.False(t, stderrors.Is(clone, ErrValidation))
	assert.Equal(t, "exam cannot start in the selected slot", ErrInvalidPlacement.Message)
}
