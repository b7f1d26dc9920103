package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// executeToolCalls runs all calls concurrently and returns them, in the
// order requested, with their responses filled in. Calls without a unique
// ID get a generated one so results can be matched back.
func (c *ExchangeClient) executeToolCalls(ctx context.Context, toolCalls []llms.ToolCall, onEvent eventEmitter) []llms.ToolCall {
	calls := make([]llms.ToolCall, len(toolCalls))
	seen := make(map[string]bool, len(toolCalls))
	for i, call := range toolCalls {
		if call.ID == "" || seen[call.ID] {
			call.ID = uuid.NewString()
		}
		seen[call.ID] = true
		calls[i] = call
	}

	var mu sync.Mutex
	responses := make(map[string]string, len(calls))
	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(call llms.ToolCall) {
			defer wg.Done()
			response := c.callTool(ctx, call, onEvent)

			mu.Lock()
			responses[call.ID] = response
			mu.Unlock()
		}(call)
	}
	wg.Wait()

	for i := range calls {
		calls[i].Response = responses[calls[i].ID]
	}
	return calls
}

// callTool never fails: errors, panics and unknown tools are turned into a
// response the LLM can explain to the user.
func (c *ExchangeClient) callTool(ctx context.Context, toolCall llms.ToolCall, onEvent eventEmitter) string {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", toolCall.Name), attribute.String("tool.call_id", toolCall.ID))

	onEvent(events.NewToolCallStarted(toolCall.ID, toolCall.Name, toolCall.Arguments))
	started := time.Now()

	var tool *llms.Tool
	for i := range c.tools {
		if c.tools[i].Function.Name == toolCall.Name {
			tool = &c.tools[i]
			break
		}
	}

	var err error
	var response string
	if tool == nil || tool.Execute == nil {
		err = fmt.Errorf("tool not found: %s", toolCall.Name)
		response = fmt.Sprintf("The tool %q is not available.", toolCall.Name)
	} else {
		err = runCollaborator(ctx, "tool "+toolCall.Name, func(ctx context.Context) error {
			var runErr error
			response, runErr = tool.Execute(ctx, toolCall.Arguments)
			return runErr
		})
		if err != nil {
			response = fmt.Sprintf("Error executing %s: %v", toolCall.Name, err)
		}
	}

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("tool call failed", "tool", toolCall.Name, "error", err)
		onEvent(events.NewToolCallFailed(toolCall.ID, toolCall.Name, err.Error(), response, time.Since(started)))
	} else {
		onEvent(events.NewToolCallCompleted(toolCall.ID, toolCall.Name, response, time.Since(started)))
	}
	toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolCall.Name),
		attribute.String("status", status),
	))

	return response
}
