// Package apperr defines the error kinds shared by the stores and services.
//
// Services return errors whose kind tells the RPC layer how to render them.
// Specific failures are exposed as sentinels so callers can match them with
// errors.Is and still recover the kind with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is any error that does not carry a kind.
	Unknown Kind = iota
	// NotFound means a referenced group, conversation, membership or message does not exist.
	NotFound
	// Conflict means a duplicate membership or a duplicate unique name.
	Conflict
	// InvariantViolation means the change would break a membership invariant.
	InvariantViolation
	// Unavailable means the store timed out or could not be reached. Safe to retry reads.
	Unavailable
	// Invalid means the caller supplied a structurally wrong combination of fields.
	Invalid
	// Forbidden means the caller lacks the role or ownership the action requires.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvariantViolation:
		return "invariant_violation"
	case Unavailable:
		return "unavailable"
	case Invalid:
		return "invalid"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is an error with a Kind and an optional cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the message without the cause, suitable for users.
func (e *Error) Message() string { return e.msg }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrGroupNotFound         = New(NotFound, "group not found")
	ErrConversationNotFound  = New(NotFound, "conversation not found")
	ErrMessageNotFound       = New(NotFound, "message not found")
	ErrPostNotFound          = New(NotFound, "post not found")
	ErrUserNotFound          = New(NotFound, "user not found")
	ErrNotAMember            = New(NotFound, "user is not a member of this group")
	ErrNoPendingRequest      = New(NotFound, "no pending request for this user")
	ErrNotInConversation     = New(NotFound, "user is not a member of this conversation")
	ErrAlreadyMember         = New(Conflict, "user is already a member of this group")
	ErrGroupNameTaken        = New(Conflict, "group name is already taken")
	ErrSoleAdminCannotLeave  = New(InvariantViolation, "the only admin of a group with other members cannot leave it")
	ErrLastAdminRequired     = New(InvariantViolation, "a group must keep at least one admin")
	ErrInvalidDestination    = New(Invalid, "a message needs exactly one of conversation id or post id")
	ErrInvalidContentKind    = New(Invalid, "content kind must be text or image")
	ErrAttachmentNotOwned    = New(Invalid, "image was not uploaded by the sender or is already attached")
	ErrNotGroupAdmin         = New(Forbidden, "this account is not an admin of this group")
	ErrNotGroupMember        = New(Forbidden, "this account is not a member of this group")
	ErrNotMessageOwner       = New(Forbidden, "this account is not the owner of this message")
	ErrNotConversationMember = New(Forbidden, "this account is not a member of this conversation")
)
