package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	turnCounter, _ = meter.Int64Counter("ema.turns",
		metric.WithDescription("Number of conversation turns by outcome"),
		metric.WithUnit("{turn}"))
	toolCallCounter, _ = meter.Int64Counter("ema.tool_calls",
		metric.WithDescription("Number of tool executions by tool and outcome"),
		metric.WithUnit("{call}"))
)
