package events

import "time"

const (
	KindToolCallStarted   Kind = "tool_call.started"
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed is emitted when a tool errors, panics or is
	// unknown. The exchange still continues with Response as the result.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallStarted is emitted before a requested tool runs.
type ToolCallStarted struct {
	Base
	ID        string
	Name      string
	Arguments string
}

func NewToolCallStarted(id, name, arguments string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), ID: id, Name: name, Arguments: arguments}
}

// ToolCallCompleted carries the result handed back to the LLM.
type ToolCallCompleted struct {
	Base
	ID       string
	Name     string
	Response string
	Duration time.Duration
}

func NewToolCallCompleted(id, name, response string, duration time.Duration) ToolCallCompleted {
	return ToolCallCompleted{
		Base:     NewBase(KindToolCallCompleted),
		ID:       id,
		Name:     name,
		Response: response,
		Duration: duration,
	}
}

type ToolCallFailed struct {
	Base
	ID       string
	Name     string
	Error    string
	Response string
	Duration time.Duration
}

func NewToolCallFailed(id, name, err, response string, duration time.Duration) ToolCallFailed {
	return ToolCallFailed{
		Base:     NewBase(KindToolCallFailed),
		ID:       id,
		Name:     name,
		Error:    err,
		Response: response,
		Duration: duration,
	}
}
