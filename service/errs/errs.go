// Package errs is the error taxonomy shared by every service. Controllers map
// Kind to an HTTP status and surface Code to clients.
package errs

import (
	"errors"
	"fmt"

	"bookshare/util/database"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindUnavailable   Kind = "unavailable"
)

type ErrCode string

const (
	ErrInvalidInput  ErrCode = "INVALID_INPUT"
	ErrEmptyText     ErrCode = "EMPTY_TEXT"
	ErrBadWindow     ErrCode = "BAD_WINDOW"
	ErrSelfThread    ErrCode = "SELF_THREAD"
	ErrNoOwner       ErrCode = "NO_OWNER"
	ErrNoProposal    ErrCode = "NO_PROPOSAL"
	ErrBadRating     ErrCode = "BAD_RATING"
	ErrNotOwner      ErrCode = "NOT_OWNER"
	ErrNotMember     ErrCode = "NOT_PARTICIPANT"
	ErrNotRecipient  ErrCode = "NOT_RECIPIENT"
	ErrRentActive    ErrCode = "RENT_ACTIVE"
	ErrDecisionMade  ErrCode = "DECISION_MADE"
	ErrThreadClosed  ErrCode = "THREAD_CLOSED"
	ErrNotAgreed     ErrCode = "NOT_AGREED"
	ErrAlreadyRated  ErrCode = "ALREADY_RATED"
	ErrInFlight      ErrCode = "IN_FLIGHT"
	ErrBookNotFound  ErrCode = "BOOK_NOT_FOUND"
	ErrThreadMissing ErrCode = "THREAD_NOT_FOUND"
	ErrNoActiveRent  ErrCode = "NO_ACTIVE_RENT"
	ErrUserNotFound  ErrCode = "USER_NOT_FOUND"
	ErrMsgNotFound   ErrCode = "MESSAGE_NOT_FOUND"
	ErrStore         ErrCode = "STORE_UNAVAILABLE"
)

// Error carries a Kind for status mapping, a stable Code and an optional
// human message. Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Code ErrCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return string(e.Code) + ": " + e.Msg
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, c ErrCode, msg string) error { return &Error{Kind: k, Code: c, Msg: msg} }

func Validation(c ErrCode, msg string) error    { return newErr(KindValidation, c, msg) }
func Authorization(c ErrCode, msg string) error { return newErr(KindAuthorization, c, msg) }
func Conflict(c ErrCode, msg string) error      { return newErr(KindConflict, c, msg) }
func NotFound(c ErrCode, msg string) error      { return newErr(KindNotFound, c, msg) }

// Unavailable wraps a storage failure.
func Unavailable(err error) error {
	return &Error{Kind: KindUnavailable, Code: ErrStore, Msg: "storage unavailable", Err: err}
}

// KindOf reports the Kind of err. Errors outside the taxonomy count as
// KindUnavailable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// Code extracts the error code, empty when err is not an *Error.
func Code(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message is the human-readable part of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// Store translates a repository error: ErrNotFound becomes NotFound with
// code nf, anything else not already classified becomes Unavailable.
func Store(err error, nf ErrCode) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, database.ErrNotFound) {
		return &Error{Kind: KindNotFound, Code: nf, Msg: "not found", Err: err}
	}
	return Unavailable(err)
}
