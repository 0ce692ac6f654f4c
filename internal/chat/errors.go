package chat

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrOther ErrorKind = iota
	ErrStatus
	ErrTimeout
	ErrBody
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStatus:
		return "status"
	case ErrTimeout:
		return "timeout"
	case ErrBody:
		return "body"
	default:
		return "other"
	}
}

// Error is returned by chat client implementations.
type Error struct {
	Kind ErrorKind
	// Code is the HTTP status for ErrStatus.
	Code int
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrStatus:
		if e.Err != nil {
			return fmt.Sprintf("chat %s: status %d: %v", e.Op, e.Code, e.Err)
		}
		return fmt.Sprintf("chat %s: status %d", e.Op, e.Code)
	default:
		if e.Err == nil {
			return fmt.Sprintf("chat %s: %s error", e.Op, e.Kind)
		}
		return fmt.Sprintf("chat %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func StatusErr(op string, code int, err error) error {
	return &Error{Kind: ErrStatus, Op: op, Code: code, Err: err}
}

func TimeoutErr(op string, err error) error { return &Error{Kind: ErrTimeout, Op: op, Err: err} }
func BodyErr(op string, err error) error    { return &Error{Kind: ErrBody, Op: op, Err: err} }
func OtherErr(op string, err error) error   { return &Error{Kind: ErrOther, Op: op, Err: err} }

// IsTimeout reports whether err is a chat timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrTimeout
}

// HTTPStatus returns the HTTP status carried by err, or 0.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrStatus {
		return e.Code
	}
	return 0
}
