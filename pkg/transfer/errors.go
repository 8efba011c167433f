package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"
)

// InvalidDescriptorError aborts a batch before execution: one of the
// requested identifiers could not be normalized.
type InvalidDescriptorError struct {
	Raw    string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor %q: %s", e.Raw, e.Reason)
}

// ModeUnavailableError aborts a batch before execution: the caller asked
// for a concrete mode that the environment cannot satisfy. Only auto mode
// may downgrade; explicit requests are never silently overridden.
type ModeUnavailableError struct {
	Requested Mode
	Reason    string
}

func (e *ModeUnavailableError) Error() string {
	return fmt.Sprintf("mode %s unavailable: %s", e.Requested, e.Reason)
}

// ToolInvocationError is a process-level failure of the bulk tool (could
// not start, unsupported flag). It triggers escalation to the traditional
// path rather than aborting the batch.
type ToolInvocationError struct {
	Err    error
	Stderr string
}

func (e *ToolInvocationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("bulk tool invocation failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("bulk tool invocation failed: %v", e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// TransientTransferError marks a per-object failure worth retrying
// (timeouts, throttling).
type TransientTransferError struct {
	Err error
}

func (e *TransientTransferError) Error() string {
	return fmt.Sprintf("transient transfer error: %v", e.Err)
}

func (e *TransientTransferError) Unwrap() error { return e.Err }

// PermanentTransferError marks a per-object failure that retrying cannot
// fix (not-found, permission denied).
type PermanentTransferError struct {
	Err error
}

func (e *PermanentTransferError) Error() string {
	return fmt.Sprintf("permanent transfer error: %v", e.Err)
}

func (e *PermanentTransferError) Unwrap() error { return e.Err }

// permanentCodes are API error codes that no amount of retrying will fix.
var permanentCodes = []string{
	"NoSuchKey",
	"NoSuchBucket",
	"NotFound",
	"AccessDenied",
	"InvalidAccessKeyId",
	"SignatureDoesNotMatch",
	"Forbidden",
}

// transientCodes are API error codes the store hands out under load.
var transientCodes = []string{
	"SlowDown",
	"Throttling",
	"ThrottlingException",
	"RequestTimeout",
	"InternalError",
	"ServiceUnavailable",
}

// Classify wraps err as transient or permanent based on typed API errors,
// network errors and message text. Context cancellation is passed through
// untouched so callers can distinguish it from transfer failures.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		for _, c := range permanentCodes {
			if code == c {
				return &PermanentTransferError{Err: err}
			}
		}
		for _, c := range transientCodes {
			if code == c {
				return &TransientTransferError{Err: err}
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientTransferError{Err: err}
	}

	if messageLooksPermanent(err.Error()) {
		return &PermanentTransferError{Err: err}
	}
	// Unknown failures default to transient: a retry is cheap, a dropped
	// object is not.
	return &TransientTransferError{Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientTransferError
	return errors.As(err, &t)
}

// ClassifyMessage classifies a failure message scraped from the bulk
// tool's output, where no typed error is available.
func ClassifyMessage(msg string) error {
	err := errors.New(msg)
	if messageLooksPermanent(msg) {
		return &PermanentTransferError{Err: err}
	}
	return &TransientTransferError{Err: err}
}

func messageLooksPermanent(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range []string{"nosuchkey", "nosuchbucket", "not found", "notfound", "access denied", "accessdenied", "forbidden", "invalidaccesskey", "signaturedoesnotmatch", "status code: 403", "status code: 404"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
