package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	err := fmt.Errorf("react: %w", StatusErr("react", 403, errors.New("no permission")))
	assert.Equal(t, 403, HTTPStatus(err))
	assert.Equal(t, "chat react: status 403: no permission", errors.Unwrap(err).Error())

	assert.Equal(t, 0, HTTPStatus(TimeoutErr("post", context.DeadlineExceeded)))
	assert.Equal(t, 0, HTTPStatus(errors.New("plain")))
	assert.True(t, IsTimeout(TimeoutErr("post", context.DeadlineExceeded)))
}

func TestStatusCodeString(t *testing.T) {
	var code StatusCode = StatusError
	assert.Equal(t, "error", code.String())
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "unknown", StatusUnknown.String())

	st := Status{Code: StatusError, Error: &ServerError{ID: "api.x", Message: "boom"}}
	assert.Equal(t, "boom", st.Error.Message)
}
