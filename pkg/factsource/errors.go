package factsource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrSourceUnavailable marks a source that failed past its
	// threshold. The fetcher skips components instead of waiting on a
	// source that is known to be down.
	ErrSourceUnavailable = errors.New("fact source unavailable")

	// ErrTooManyComponents is returned when an input document or run
	// exceeds the component limit.
	ErrTooManyComponents = errors.New("too many components")
)

// StatusError is a non-2xx answer from a fact source API.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Code)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Source, e.Code, e.Body)
}

// Retryable reports whether the same request may succeed later.
// Throttling and server errors are retryable; other 4xx answers mean
// the request itself is wrong and will keep failing.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// AuthFailure reports whether the source rejected our credentials.
// An auth failure affects every request to the source, not just one
// component, so callers mark the whole source unavailable.
func (e *StatusError) AuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsTransient classifies err as a temporary failure worth counting
// against a source's health rather than a defect in the request.
// Cancellation is never transient: the caller gave up, the source did
// not fail.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// NXDOMAIN will not fix itself between components.
		return !dnsErr.IsNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// Wrapped transport errors from third-party dialers lose their
	// types; fall back to the usual substrings.
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
