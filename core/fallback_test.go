package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestFallbackMessage(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "status code", err: errors.New("llm returned status 429"), expected: rateLimitFallbackMessage},
		{name: "too many requests", err: errors.New("Too Many Requests"), expected: rateLimitFallbackMessage},
		{name: "rate limit wording", err: errors.New("rate limit exceeded"), expected: rateLimitFallbackMessage},
		{name: "network wording", err: errors.New("network is unreachable"), expected: networkFallbackMessage},
		{name: "fetch wording", err: errors.New("failed to fetch"), expected: networkFallbackMessage},
		{name: "net error", err: fmt.Errorf("failed to stream: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), expected: networkFallbackMessage},
		{name: "deadline", err: fmt.Errorf("turn timed out after 1s: %w", context.DeadlineExceeded), expected: genericFallbackMessage},
		{name: "generic", err: errors.New("unexpected end of JSON input"), expected: genericFallbackMessage},
		{name: "nil", err: nil, expected: genericFallbackMessage},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := FallbackMessage(testCase.err); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}
