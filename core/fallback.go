package orchestration

import (
	"context"
	"errors"
	"net"
	"strings"
)

const (
	rateLimitFallbackMessage = "Rate limit reached. Please wait a moment before trying again."
	networkFallbackMessage   = "Network error. Please check your connection."
	genericFallbackMessage   = "Sorry, I encountered an error. Please try again."
)

// FallbackMessage returns the message spoken and displayed instead of a
// response when a turn fails. The error text decides between rate limit,
// network and generic wording.
func FallbackMessage(err error) string {
	if err == nil {
		return genericFallbackMessage
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "429"),
		strings.Contains(message, "too many requests"),
		strings.Contains(message, "rate limit"):
		return rateLimitFallbackMessage
	case strings.Contains(message, "network"),
		strings.Contains(message, "fetch"),
		isNetError(err):
		return networkFallbackMessage
	default:
		return genericFallbackMessage
	}
}

// isNetError ignores deadlines, context.DeadlineExceeded satisfies net.Error
// but a timed out turn is not a connection problem.
func isNetError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
