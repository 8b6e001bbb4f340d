package manager

import (
	"errors"
	"fmt"
	"strings"
)

// NotRunning is returned when a caller targets an account with no active
// runtime.
type NotRunning struct {
	AccountID      string
	LastStartError string
}

func (e *NotRunning) Error() string {
	msg := fmt.Sprintf("manager: account %s not running", e.AccountID)
	if e.LastStartError != "" {
		msg += ": " + e.LastStartError
	}
	return msg
}

// NotFound is returned for an unknown account id.
type NotFound struct{ AccountID string }

func (e *NotFound) Error() string { return fmt.Sprintf("manager: account %s not found", e.AccountID) }

// InvalidArgument is returned for a malformed caller-supplied value.
type InvalidArgument struct{ Reason string }

func (e *InvalidArgument) Error() string { return "manager: invalid argument: " + e.Reason }

// StartFailedRetryable marks a start failure the caller may retry.
type StartFailedRetryable struct{ Reason string }

func (e *StartFailedRetryable) Error() string { return "manager: start failed (retryable): " + e.Reason }

// StartFailedPermanent marks a start failure that will not succeed on retry.
type StartFailedPermanent struct{ Reason string }

func (e *StartFailedPermanent) Error() string { return "manager: start failed (permanent): " + e.Reason }

var errMissingLoginCode = errors.New("manager: missing login code")

// normalizeStartError rewrites recognized gateway failure messages into
// user-actionable prose. Normalization runs before classification, so a
// rewritten message must still contain whichever substrings classify it.
// An already-normalized message is returned unchanged.
func normalizeStartError(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)

	for _, prefix := range []string{
		"gateway auth failed, re-bind code or re-scan (",
		"login code is required (",
		"account does not exist on the gateway (",
	} {
		if strings.HasPrefix(msg, prefix) {
			return msg
		}
	}

	switch {
	case strings.Contains(msg, " 400") || strings.Contains(lower, "invalid response status"):
		return "gateway auth failed, re-bind code or re-scan (" + msg + ")"
	case strings.Contains(lower, "missing login code") || strings.Contains(msg, "code 不能为空"):
		return "login code is required (" + msg + ")"
	case strings.Contains(msg, "账号不存在"):
		return "account does not exist on the gateway (" + msg + ")"
	default:
		return msg
	}
}

// nonRetryableSubstrings classify a start failure as permanent: retrying
// would not help (bad credentials, malformed request, account missing).
var nonRetryableSubstrings = []string{
	"missing login code",
	"code 不能为空",
	".login error=",
	"userservice.login error=",
	"账号不存在",
	"account_id",
	"invalid response status",
	" 400",
}

// retryableSubstrings classify a start failure as transient: connectivity
// issues worth another attempt.
var retryableSubstrings = []string{
	"websocket disconnected",
	"connect failed",
	"timeout",
	"connection reset",
	"broken pipe",
	"network",
	"temporarily unavailable",
	"ws",
}

// classifyStartError normalizes then classifies a start failure.
// Unclassified errors are treated as non-retryable per spec.
func classifyStartError(err error) (retryable bool, normalized string) {
	normalized = normalizeStartError(err)
	lower := strings.ToLower(normalized)

	for _, s := range nonRetryableSubstrings {
		if strings.Contains(lower, s) {
			return false, normalized
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true, normalized
		}
	}
	return false, normalized
}
