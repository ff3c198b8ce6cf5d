package booking

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound                 Kind = "NOT_FOUND"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindValidation               Kind = "VALIDATION_ERROR"
	KindInvalidState             Kind = "INVALID_STATE"
	KindInsufficientAvailability Kind = "INSUFFICIENT_AVAILABILITY"
	KindNoPricingAvailable       Kind = "NO_PRICING_AVAILABLE"
	KindStorage                  Kind = "STORAGE_ERROR"
)

// Shortfall describes one product that could not be booked at Confirm.
type Shortfall struct {
	ProductID string             `json:"product_id"`
	Requested int                `json:"requested"`
	Available int                `json:"available"`
	Status    AvailabilityStatus `json:"status"`
}

type Error struct {
	Kind       Kind
	Msg        string
	Shortfalls []Shortfall
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg == "":
		return string(e.Kind)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works on detailed errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrUnauthorized             = &Error{Kind: KindUnauthorized}
	ErrValidation               = &Error{Kind: KindValidation}
	ErrInvalidState             = &Error{Kind: KindInvalidState}
	ErrInsufficientAvailability = &Error{Kind: KindInsufficientAvailability}
	ErrNoPricingAvailable       = &Error{Kind: KindNoPricingAvailable}
	ErrStorage                  = &Error{Kind: KindStorage}
)

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// StorageError wraps a persistence failure. A failed write transaction left no partial effect.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Kind: KindStorage, Msg: op, Err: err}
}

// KindOf returns the kind of err, or KindStorage for errors outside this package.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindStorage
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindStorage
}
