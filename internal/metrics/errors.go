package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorLabel returns a short human-friendly category for a failed request.
// HTTP failures are grouped by status code; transport failures by cause.
func ErrorLabel(status int, err error) string {
	if err == nil {
		if status >= 400 {
			return fmt.Sprintf("HTTP %d", status)
		}
		return "Unknown error"
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "Connection reset"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS lookup failed"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Network error (" + opErr.Op + ")"
	}
	if status >= 400 {
		return fmt.Sprintf("HTTP %d", status)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "Request URL error"
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Unknown error"
	}
	if len(msg) > 40 {
		msg = msg[:40]
	}
	return msg
}
