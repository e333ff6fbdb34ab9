package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndMatchesSentinel(t *testing.T) {
	err := Clone(ErrConflict, "student already enrolled")
	assert.Equal(t, "student already enrolled", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	err := WithDetails(ErrConflict, "schedule conflict", []string{"monday"})
	assert.Equal(t, []string{"monday"}, err.Details)
	assert.Nil(t, ErrConflict.Details)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)

	typed := Clone(ErrNotFound, "class not found")
	assert.Same(t, typed, FromError(fmt.Errorf("lookup: %w", typed)))
}

func TestTaxonomyHelpers(t *testing.T) {
	infra := Infrastructure(sql.ErrConnDone, "failed to count enrollments")
	assert.True(t, IsInfrastructure(infra))
	assert.False(t, IsDomain(infra))
	assert.True(t, errors.Is(infra, sql.ErrConnDone))

	assert.True(t, IsDomain(Clone(ErrInvalidState, "class cancelled")))
	assert.True(t, IsInfrastructure(errors.New("raw driver error")))
	assert.False(t, IsDomain(nil))
	assert.True(t, HasCode(Clone(ErrValidation, ""), ErrValidation.Code))
}
