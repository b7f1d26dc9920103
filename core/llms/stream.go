package llms

import (
	"context"
	"strings"
)

// Stream is a single streamed response of an LLM. Chunks can only be
// iterated once, a second iteration yields nothing.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

// StreamChunk is one piece of a streamed response. Providers return the
// concrete kinds below, a chunk that matches none of them carries nothing
// the exchange needs and can be skipped.
type StreamChunk interface {
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamToolCallChunk carries one complete tool call. Providers that stream
// call arguments in pieces assemble them before yielding.
type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() ToolCall
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}

// Usage is the token accounting of one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// CollectResponse folds already received chunks into a non-streaming
// response.
func CollectResponse(chunks []StreamChunk) *Response {
	var content strings.Builder
	response := &Response{}
	for _, chunk := range chunks {
		switch chunk := chunk.(type) {
		case StreamContentChunk:
			content.WriteString(chunk.Content())
		case StreamToolCallChunk:
			response.ToolCalls = append(response.ToolCalls, chunk.ToolCall())
		}
	}
	response.Content = content.String()
	return response
}
