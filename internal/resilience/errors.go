// Package resilience provides retry with exponential backoff and the error
// taxonomy for classified site failures (soft block, hard block, network).
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// SoftBlockError marks a defensive response (429, 403, bot challenge) that
// may succeed on retry with a different identity and delay.
type SoftBlockError struct {
	Site       string
	HTTPStatus int
}

func (e *SoftBlockError) Error() string {
	return fmt.Sprintf("soft block from %s (status %d)", e.Site, e.HTTPStatus)
}

// HardBlockError marks a block treated as non-recoverable for the rest of
// the run. It is never retried.
type HardBlockError struct {
	Site string
}

func (e *HardBlockError) Error() string {
	return fmt.Sprintf("hard block from %s", e.Site)
}

// NetworkError wraps a connectivity or timeout failure. Retryable with backoff.
type NetworkError struct {
	Site string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure for %s: %v", e.Site, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error may succeed on a later attempt.
// Soft blocks and network failures are retryable; hard blocks never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var hard *HardBlockError
	if errors.As(err, &hard) {
		return false
	}

	var soft *SoftBlockError
	if errors.As(err, &soft) {
		return true
	}
	var netFail *NetworkError
	if errors.As(err, &netFail) {
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

	// Wrapped transport errors from HTTP clients lose their type; fall back
	// to message heuristics.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsBlock reports whether the error is either kind of block.
func IsBlock(err error) bool {
	var soft *SoftBlockError
	var hard *HardBlockError
	return errors.As(err, &soft) || errors.As(err, &hard)
}
