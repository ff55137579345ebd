package tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// benignSubstrings is the table-driven, case-insensitive classifier
// required by spec.md §4.8/§7/§9: teardown causes attributable to the
// peer or to cancellation, expected during normal operation, and
// suppressed from logs. Exposed (lowercase, unexported slice plus the
// exported IsBenign predicate) so tests can assert classification.
var benignSubstrings = []string{
	"writable stream closed",
	"broken pipe",
	"connection reset",
	"connection closed",
	"connection refused",
	"connection timed out",
	"connection timeout",
	"read timed out",
	"write timed out",
	"end of stream",
	"eof",
	"cancelled",
	"canceled",
	"aborted",
	"network is unreachable",
	"network unreachable",
	"host is unreachable",
	"host unreachable",
	"no route to host",
	"dns resolution failed",
	"unknown host",
	"no such host",
	"server misbehaving",
	"use of closed network connection",
	"epipe",
	"econnreset",
	"econnrefused",
	"econnaborted",
	"etimedout",
	"enetunreach",
	"ehostunreach",
}

// IsBenign classifies err per spec.md §4.8. nil is never benign (there is
// nothing to suppress). Anything not matched by the table is fatal and
// should be logged once.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, sub := range benignSubstrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
