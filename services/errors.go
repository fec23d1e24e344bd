package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies a service failure
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindInvalidCredential  Kind = "INVALID_CREDENTIAL"
	KindSessionExpired     Kind = "SESSION_EXPIRED"
	KindBusy               Kind = "BUSY"
	KindForbidden          Kind = "FORBIDDEN"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindInternal           Kind = "INTERNAL"
)

// Error is the typed failure returned by every service.
// Code is the specific reason (e.g. CAPACITY_EXCEEDED), Kind its category.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind and code so wrapped copies still compare equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound     = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrActivityNotFound = newError(KindNotFound, "ACTIVITY_NOT_FOUND", "activity not found")

	ErrAlreadyJoined    = newError(KindConflict, "ALREADY_JOINED", "already joined this activity")
	ErrAlreadyFavorited = newError(KindConflict, "ALREADY_FAVORITED", "already favorited this activity")
	ErrAccountTaken     = newError(KindConflict, "ACCOUNT_TAKEN", "account already exists")

	ErrNotJoined        = newError(KindPreconditionFailed, "NOT_JOINED", "not joined this activity")
	ErrNotFavorited     = newError(KindPreconditionFailed, "NOT_FAVORITED", "activity is not in favorites")
	ErrCapacityExceeded = newError(KindPreconditionFailed, "CAPACITY_EXCEEDED", "activity is full")

	ErrNotOwner = newError(KindForbidden, "NOT_OWNER", "only the creator can modify this activity")

	ErrWrongPassword   = newError(KindInvalidCredential, "WRONG_PASSWORD", "account or password is incorrect")
	ErrNoActiveSession = newError(KindSessionExpired, "SESSION_EXPIRED", "session has expired or was logged out")

	ErrBusy = newError(KindBusy, "BUSY", "resource is busy, please retry")
)

// InvalidInput builds an INVALID_INPUT error with a specific message
func InvalidInput(message string) *Error {
	return newError(KindInvalidInput, "INVALID_INPUT", message)
}

// Internal wraps an unexpected storage or runtime failure
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: op, Err: err}
}

// KindOf returns the kind of err, INTERNAL when it carries none
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// AsError returns err as a *Error, wrapping unknown failures as INTERNAL
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Internal("internal error", err)
}

// wrapStoreErr translates storage failures into the taxonomy.
// Service errors pass through untouched.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if isBusy(err) {
		return &Error{Kind: KindBusy, Code: ErrBusy.Code, Message: ErrBusy.Message, Err: err}
	}
	return Internal(op, err)
}

// Postgres SQLSTATEs raised under lock contention
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

func isBusy(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateLockNotAvailable, sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
