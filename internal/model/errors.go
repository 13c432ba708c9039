package model

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidArgument  Kind = "invalid_argument"
	KindStateConflict    Kind = "state_conflict"
)

// Code identifies a specific failure.
type Code string

const (
	CodeUnknownAsset         Code = "UnknownAsset"
	CodeUnknownListing       Code = "UnknownListing"
	CodeUnknownCollection    Code = "UnknownCollection"
	CodeNoAssetsForOwner     Code = "NoAssetsForOwner"
	CodeNotOwner             Code = "NotOwner"
	CodeNotOwnerOrAuthorized Code = "NotOwnerOrAuthorized"
	CodeNotAuthorized        Code = "NotAuthorized"
	CodeNotSeller            Code = "NotSeller"
	CodeInvalidRecipient     Code = "InvalidRecipient"
	CodeInvalidPrice         Code = "InvalidPrice"
	CodeInvalidAmount        Code = "InvalidAmount"
	CodeListingNotActive     Code = "ListingNotActive"
	CodeStaleListing         Code = "StaleListing"
	CodeWrongPayment         Code = "WrongPayment"
	CodeInsufficientFunds    Code = "InsufficientFunds"
)

// Error is a domain failure. Two errors match under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is matches on Code so that detailed errors compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors, one per code.
var (
	ErrUnknownAsset         = &Error{Kind: KindNotFound, Code: CodeUnknownAsset, Message: "asset was never minted"}
	ErrUnknownListing       = &Error{Kind: KindNotFound, Code: CodeUnknownListing, Message: "listing was never created"}
	ErrUnknownCollection    = &Error{Kind: KindNotFound, Code: CodeUnknownCollection, Message: "collection is not hosted"}
	ErrNoAssetsForOwner     = &Error{Kind: KindNotFound, Code: CodeNoAssetsForOwner, Message: "owner holds no assets"}
	ErrNotOwner             = &Error{Kind: KindPermissionDenied, Code: CodeNotOwner, Message: "caller is not the owner"}
	ErrNotOwnerOrAuthorized = &Error{Kind: KindPermissionDenied, Code: CodeNotOwnerOrAuthorized, Message: "caller is neither owner nor approved"}
	ErrNotAuthorized        = &Error{Kind: KindPermissionDenied, Code: CodeNotAuthorized, Message: "marketplace is not approved for asset"}
	ErrNotSeller            = &Error{Kind: KindPermissionDenied, Code: CodeNotSeller, Message: "caller is not the seller"}
	ErrInvalidRecipient     = &Error{Kind: KindInvalidArgument, Code: CodeInvalidRecipient, Message: "recipient is the null identity"}
	ErrInvalidPrice         = &Error{Kind: KindInvalidArgument, Code: CodeInvalidPrice, Message: "price must be positive"}
	ErrInvalidAmount        = &Error{Kind: KindInvalidArgument, Code: CodeInvalidAmount, Message: "amount must be positive"}
	ErrListingNotActive     = &Error{Kind: KindStateConflict, Code: CodeListingNotActive, Message: "listing is sold or cancelled"}
	ErrStaleListing         = &Error{Kind: KindStateConflict, Code: CodeStaleListing, Message: "seller no longer owns asset or approval was revoked"}
	ErrWrongPayment         = &Error{Kind: KindStateConflict, Code: CodeWrongPayment, Message: "payment does not equal price"}
	ErrInsufficientFunds    = &Error{Kind: KindStateConflict, Code: CodeInsufficientFunds, Message: "available balance too low"}
)

// Errorf returns a copy of base carrying a detailed message.
func Errorf(base *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    base.Kind,
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrorForCode returns the sentinel for code, or nil when code is unknown.
func ErrorForCode(code Code) *Error {
	for _, e := range []*Error{
		ErrUnknownAsset, ErrUnknownListing, ErrUnknownCollection, ErrNoAssetsForOwner,
		ErrNotOwner, ErrNotOwnerOrAuthorized, ErrNotAuthorized, ErrNotSeller,
		ErrInvalidRecipient, ErrInvalidPrice, ErrInvalidAmount,
		ErrListingNotActive, ErrStaleListing, ErrWrongPayment, ErrInsufficientFunds,
	} {
		if e.Code == code {
			return e
		}
	}
	return nil
}
