package events

import (
	"strings"
	"time"
)

// Kind names an event as "<group>.<name>", for example
// "tool_call.started".
type Kind string

// Group returns the part of the kind before the first dot.
func (k Kind) Group() string {
	group, _, _ := strings.Cut(string(k), ".")
	return group
}

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every event to implement [Event].
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
