package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyAPICodes(t *testing.T) {
	permanent := []string{"NoSuchKey", "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId"}
	for _, code := range permanent {
		err := Classify(&smithy.GenericAPIError{Code: code, Message: "nope"})
		assert.False(t, IsTransient(err), code)
		var p *PermanentTransferError
		assert.ErrorAs(t, err, &p, code)
	}

	transient := []string{"SlowDown", "Throttling", "RequestTimeout", "InternalError", "ServiceUnavailable"}
	for _, code := range transient {
		err := Classify(&smithy.GenericAPIError{Code: code, Message: "busy"})
		assert.True(t, IsTransient(err), code)
	}
}

func TestClassifyNetworkTimeout(t *testing.T) {
	err := Classify(fmt.Errorf("get object: %w", timeoutErr{}))
	assert.True(t, IsTransient(err))
}

func TestClassifyContextErrorsPassThrough(t *testing.T) {
	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.Equal(t, context.DeadlineExceeded, Classify(context.DeadlineExceeded))
	assert.False(t, IsTransient(Classify(context.Canceled)))
}

func TestClassifyUnknownDefaultsTransient(t *testing.T) {
	err := Classify(errors.New("connection reset by peer"))
	assert.True(t, IsTransient(err))
}

func TestClassifyMessage(t *testing.T) {
	assert.False(t, IsTransient(ClassifyMessage(`NoSuchKey: the specified key does not exist`)))
	assert.False(t, IsTransient(ClassifyMessage(`AccessDenied: status code: 403`)))
	assert.False(t, IsTransient(ClassifyMessage(`object not found`)))
	assert.True(t, IsTransient(ClassifyMessage(`SlowDown: reduce request rate`)))
	assert.True(t, IsTransient(ClassifyMessage(`unexpected EOF`)))
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify(nil))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")

	require.ErrorIs(t, &TransientTransferError{Err: inner}, inner)
	require.ErrorIs(t, &PermanentTransferError{Err: inner}, inner)
	require.ErrorIs(t, &ToolInvocationError{Err: inner}, inner)
}

func TestToolInvocationErrorIncludesStderr(t *testing.T) {
	err := &ToolInvocationError{Err: errors.New("exit status 1"), Stderr: "unknown flag: --frobnicate"}
	assert.Contains(t, err.Error(), "unknown flag")
}
