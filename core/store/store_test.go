package store

import (
	"strings"
	"testing"
)

func TestQueryPlaceholders(t *testing.T) {
	query := `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`

	if got := New(nil).query(query); got != query {
		t.Fatalf("expected query to be unchanged, got %q", got)
	}

	expected := `UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3`
	if got := New(nil, WithNumberedPlaceholders()).query(query); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestTitle(t *testing.T) {
	testCases := []struct {
		name       string
		transcript string
		expected   string
	}{
		{name: "short", transcript: "  What's the weather?  ", expected: "What's the weather?"},
		{name: "exactly fifty", transcript: strings.Repeat("a", 50), expected: strings.Repeat("a", 50)},
		{name: "long", transcript: strings.Repeat("b", 60), expected: strings.Repeat("b", 50) + "..."},
		{name: "multibyte", transcript: strings.Repeat("č", 51), expected: strings.Repeat("č", 50) + "..."},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := Title(testCase.transcript); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}
