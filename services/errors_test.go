package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKindAndCode(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", &Error{Kind: KindPreconditionFailed, Code: "CAPACITY_EXCEEDED", Message: "full"})

	assert.ErrorIs(t, wrapped, ErrCapacityExceeded)
	assert.NotErrorIs(t, wrapped, ErrNotJoined)
	assert.Equal(t, KindPreconditionFailed, KindOf(wrapped))
}

func TestWrapStoreErr(t *testing.T) {
	assert.NoError(t, wrapStoreErr("op", nil))

	// service errors pass through
	assert.Same(t, ErrNotOwner, wrapStoreErr("op", ErrNotOwner))

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, KindBusy},
		{"serialization", &pgconn.PgError{Code: "40001"}, KindBusy},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, KindBusy},
		{"other postgres error", &pgconn.PgError{Code: "23503"}, KindInternal},
		{"sqlite locked", errors.New("database is locked (5) (SQLITE_BUSY)"), KindBusy},
		{"plain failure", errors.New("disk full"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapStoreErr("op", tt.err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAsErrorHidesUnknownFailures(t *testing.T) {
	se := AsError(errors.New("boom"))
	assert.Equal(t, KindInternal, se.Kind)
	assert.Equal(t, "INTERNAL", se.Code)

	assert.Same(t, ErrBusy, AsError(ErrBusy))
}
