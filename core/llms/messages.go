package llms

// Role describes who a message in the conversation history is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role and content pair of the conversation history.
type Message struct {
	Role    Role
	Content string
}

// Response is a single, non-streamed response from an LLM.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is a request from the LLM to invoke one of the available tools.
type ToolCall struct {
	// ID identifies the call within a single exchange. Results are matched
	// back to their calls by ID.
	ID string
	// Name is the name of the requested tool
	Name string
	// Arguments holds the JSON encoded arguments of the call
	Arguments string
	// Response is the result of the execution, empty until executed
	Response string
}

// ToolRound is one pass of the exchange that ended with tool calls. Content
// holds any text generated in the pass before the calls were requested.
type ToolRound struct {
	Content   string
	ToolCalls []ToolCall
}
