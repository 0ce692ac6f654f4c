package task

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindExpRetry Kind = iota
	KindReschedule
	KindCannotExec
)

func (k Kind) String() string {
	switch k {
	case KindReschedule:
		return "reschedule"
	case KindCannotExec:
		return "cannot_exec"
	default:
		return "exp_retry"
	}
}

// Error carries the rescheduling policy of a failed execution.
type Error struct {
	Kind  Kind
	Delay time.Duration // KindCannotExec only
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Kind == KindCannotExec {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Delay, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Reschedule asks for a retry after RescheduleDelay.
func Reschedule(msg string) error { return &Error{Kind: KindReschedule, Msg: msg} }

// CannotExec asks for a retry after exactly d. No floor applies, so
// "try again tomorrow" can be expressed as CannotExec(24*time.Hour, ...).
func CannotExec(d time.Duration, msg string) error {
	if d < 0 {
		d = 0
	}
	return &Error{Kind: KindCannotExec, Delay: d, Msg: msg}
}

// ExpRetry asks for a retry after ExpRetryDelay.
func ExpRetry(msg string) error { return &Error{Kind: KindExpRetry, Msg: msg} }

// AsExpRetry wraps err with the ExpRetry policy.
func AsExpRetry(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindExpRetry, Msg: msg, Err: err}
}

// AsCannotExec wraps err with the CannotExec policy.
func AsCannotExec(d time.Duration, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindCannotExec, Delay: max(d, 0), Msg: msg, Err: err}
}

// KindOf classifies err. Errors not built by this package are ExpRetry.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExpRetry
}

// PolicyDelay returns the delay before the next run after err.
func PolicyDelay(err error) time.Duration {
	var e *Error
	if !errors.As(err, &e) {
		return ExpRetryDelay
	}
	switch e.Kind {
	case KindReschedule:
		return RescheduleDelay
	case KindCannotExec:
		return e.Delay
	default:
		return ExpRetryDelay
	}
}
