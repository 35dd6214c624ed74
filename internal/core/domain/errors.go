package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable class of a domain error.
type Kind string

const (
	KindDuplicateVendorName  Kind = "DuplicateVendorName"
	KindDuplicateVendorURL   Kind = "DuplicateVendorURL"
	KindInvalidVendorName    Kind = "InvalidVendorName"
	KindUnknownVendor        Kind = "UnknownVendor"
	KindUnknownBuyer         Kind = "UnknownBuyer"
	KindUnknownItem          Kind = "UnknownItem"
	KindInsufficientQuantity Kind = "InsufficientQuantity"
	KindInvalidQuantity      Kind = "InvalidQuantity"
	KindInvalidPrice         Kind = "InvalidPrice"
	KindDuplicateRequest     Kind = "DuplicateRequest"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInternal             Kind = "Internal"
)

// Error is a domain failure. Two errors match under errors.Is when their
// kinds are equal, so the sentinels below work for any message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateVendorName  = &Error{Kind: KindDuplicateVendorName}
	ErrDuplicateVendorURL   = &Error{Kind: KindDuplicateVendorURL}
	ErrInvalidVendorName    = &Error{Kind: KindInvalidVendorName}
	ErrUnknownVendor        = &Error{Kind: KindUnknownVendor}
	ErrUnknownBuyer         = &Error{Kind: KindUnknownBuyer}
	ErrUnknownItem          = &Error{Kind: KindUnknownItem}
	ErrInsufficientQuantity = &Error{Kind: KindInsufficientQuantity}
	ErrInvalidQuantity      = &Error{Kind: KindInvalidQuantity}
	ErrInvalidPrice         = &Error{Kind: KindInvalidPrice}
	ErrDuplicateRequest     = &Error{Kind: KindDuplicateRequest}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
)

// Errorf builds a domain error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or KindInternal for anything that is not
// a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
