// Package kerr classifies competition errors into a small set of kinds.
//
// Every failure in this repository is a named precondition.  Callers want to
// know two things: which precondition (the sentinel), and which family it
// belongs to (the Kind), without parsing message strings.  An *Error carries
// both and plays nice with errors.Is/errors.As in either direction.
package kerr

import (
	"errors"
	"fmt"
)

// Kind is the coarse failure taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindLifecycle
	KindValidation
	KindEconomic
	KindLookup
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindLifecycle:
		return "lifecycle"
	case KindValidation:
		return "validation"
	case KindEconomic:
		return "economic"
	case KindLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Sentinel causes.  Each maps to exactly one Kind at its use sites.
var (
	// configuration errors, creation time
	ErrStartNotFuture    = errors.New("start time must be in the future")
	ErrTeamCountMismatch = errors.New("team name count does not match team count")
	ErrTooManyTeams      = errors.New("too many teams")
	ErrNotPowerOfTwo     = errors.New("team count is not a power of two")

	// lifecycle errors
	ErrAlreadyStarted = errors.New("competition has already started")
	ErrNotLive        = errors.New("competition is not live")
	ErrNotFinished    = errors.New("competition has not finished")
	ErrNotExpired     = errors.New("competition has not expired")
	ErrExpired        = errors.New("competition has expired")

	// validation errors
	ErrMatchOutOfRound       = errors.New("match is not in the current round")
	ErrMatchAlreadyCompleted = errors.New("match is already completed")
	ErrBadResultCount        = errors.New("result count does not match the current round")
	ErrBadPredictionCount    = errors.New("prediction count does not match the bracket")
	ErrBadWinner             = errors.New("winner is not a valid team")
	ErrRoundIncomplete       = errors.New("current round has undecided matches")
	ErrNoRoundsRemaining     = errors.New("no rounds remaining")

	// economic errors
	ErrWrongFeeAmount  = errors.New("pool balance does not reflect the exact registration fee")
	ErrNoFeeConfigured = errors.New("competition has no registration fee")
	ErrNotRegistered   = errors.New("user is not registered")
	ErrNothingToClaim  = errors.New("nothing to claim")
	ErrAlreadyClaimed  = errors.New("reward already claimed")

	// lookup errors
	ErrUnknownCompetition = errors.New("no such competition")
	ErrUnknownUser        = errors.New("no such user")
	ErrNotOwner           = errors.New("caller does not own this competition")
	ErrWrongVariant       = errors.New("operation not supported by this competition variant")
)

// Error is a kinded error.  It wraps a cause, usually one of the sentinels
// above, possibly with call-site context attached.
type Error struct {
	kind Kind
	err  error
}

func New(kind Kind, err error) *Error {
	return &Error{kind: kind, err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf reports the Kind of err, or KindUnknown if err was not produced
// by this package.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Shorthand constructors, one per Kind.

func Config(err error) *Error     { return New(KindConfig, err) }
func Lifecycle(err error) *Error  { return New(KindLifecycle, err) }
func Validation(err error) *Error { return New(KindValidation, err) }
func Economic(err error) *Error   { return New(KindEconomic, err) }
func Lookup(err error) *Error     { return New(KindLookup, err) }

func Validationf(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func Lookupf(format string, args ...any) *Error {
	return Newf(KindLookup, format, args...)
}
