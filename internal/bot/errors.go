package bot

import (
	"errors"
	"fmt"

	"github.com/Leryan/flobot/internal/chat"
)

// ErrChannelClosed is returned by Run when the event channel closes without
// a shutdown sentinel.
var ErrChannelClosed = errors.New("event channel closed")

type ErrorKind int

const (
	ErrMiddleware ErrorKind = iota
	ErrStatus
	ErrConsumer
	ErrClient
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMiddleware:
		return "middleware"
	case ErrStatus:
		return "status"
	case ErrConsumer:
		return "consumer"
	default:
		return "client"
	}
}

// Error is returned by Instance.Run and Instance.Process. Every Error stops
// the dispatcher.
type Error struct {
	Kind ErrorKind
	// Name is the middleware name or the client operation.
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("dispatcher %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("dispatcher %s error (%s): %v", e.Kind, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the dispatcher.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// KindOf returns the dispatcher error kind of err.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func middlewareErr(name string, err error) error {
	return &Error{Kind: ErrMiddleware, Name: name, Err: err}
}

func statusErr(st *chat.Status) error {
	if st == nil {
		return &Error{Kind: ErrStatus, Err: errors.New("empty status")}
	}
	if st.Error != nil {
		return &Error{Kind: ErrStatus, Name: st.Code.String(), Err: fmt.Errorf("%s: %s", st.Error.ID, st.Error.Message)}
	}
	return &Error{Kind: ErrStatus, Name: st.Code.String(), Err: fmt.Errorf("backend status %q", st.Raw)}
}

func consumerErr(err error) error {
	return &Error{Kind: ErrConsumer, Err: err}
}

func clientErr(op string, err error) error {
	return &Error{Kind: ErrClient, Name: op, Err: err}
}

// HandlerError is a failed Handle call. It never leaves the dispatcher: it
// is reported to the debug channel instead.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string { return fmt.Sprintf("handler %s: %v", e.Handler, e.Err) }
func (e *HandlerError) Unwrap() error { return e.Err }

func WrapHandlerError(name string, err error) error {
	if err == nil {
		return nil
	}
	var he *HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &HandlerError{Handler: name, Err: err}
}
