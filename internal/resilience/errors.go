package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// BlockedError signals that the locator endpoint refused or challenged a
// request: a blocking status code, an anti-automation interstitial, or a
// payload that no longer parses as the expected API shape. Issues carries
// the human-readable findings from block detection.
type BlockedError struct {
	ZipCode string
	Issues  []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("locator blocked for zip %s: %s", e.ZipCode, strings.Join(e.Issues, "; "))
}

// IsBlocked reports whether the error chain contains a BlockedError, and
// returns it when found.
func IsBlocked(err error) (*BlockedError, bool) {
	var be *BlockedError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// TransientError wraps an error that is safe to retry without operator
// input (network timeout, 5xx that is not a block signal).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network patterns.
// Blocked errors are never transient: they go through the operator decision
// path instead of the silent retry loop.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, blocked := IsBlocked(err); blocked {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
