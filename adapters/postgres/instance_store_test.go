package postgres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)

	ns := nullString("corr-1")
	assert.True(t, ns.Valid)
	assert.Equal(t, "corr-1", ns.String)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "saga_instances_pkey" (SQLSTATE 23505)`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}
