// Package apperr holds the error kinds shared by the marketplace core.
//
// Callers compare with errors.Is against the sentinels; packages wrap them with
// context using fmt.Errorf("...: %w", apperr.ErrNotFound).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is attempted from a status
	// that does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientFunds is returned when a posting would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrConflict indicates a uniqueness violation (e.g. email already registered).
	ErrConflict = errors.New("conflict")

	// ErrInvalid covers malformed input that is not an amount.
	ErrInvalid = errors.New("invalid input")

	// ErrUnauthorized indicates missing or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")
)

// Kind names an error category.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidAmount     Kind = "invalid_amount"
	KindConflict          Kind = "conflict"
	KindInvalid           Kind = "invalid"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
)

var kinds = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrInvalidState, KindInvalidState, http.StatusConflict},
	{ErrInsufficientFunds, KindInsufficientFunds, http.StatusUnprocessableEntity},
	{ErrInvalidAmount, KindInvalidAmount, http.StatusBadRequest},
	{ErrConflict, KindConflict, http.StatusConflict},
	{ErrInvalid, KindInvalid, http.StatusBadRequest},
	{ErrUnauthorized, KindUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
}

// KindOf reports the category of err, or KindUnknown.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// HTTPStatus maps err to a response status code. Unknown errors are 500.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// NotFound wraps ErrNotFound with the entity name and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// InsufficientFundsError carries the numbers behind a rejected posting.
type InsufficientFundsError struct {
	AccountID string
	Available int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available %d, requested %d",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
