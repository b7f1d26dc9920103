// Package tools provides the assistant's built-in tools: weather, web and
// news search, the current date and time and a calculator.
//
// Tools never fail a turn. Problems are reported back to the model as plain
// sentences it can relay to the user.
package tools

import (
	"net/http"
	"os"
	"time"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultWeatherURL = "https://wttr.in"
	defaultSerperURL  = "https://google.serper.dev"

	requestTimeout = 10 * time.Second
)

type Toolbox struct {
	httpClient   *http.Client
	weatherURL   string
	serperURL    string
	serperAPIKey string
	now          func() time.Time
}

type ToolboxOption func(*Toolbox)

// WithSerperAPIKey overrides the SERPER_API_KEY environment variable
func WithSerperAPIKey(apiKey string) ToolboxOption {
	return func(t *Toolbox) { t.serperAPIKey = apiKey }
}

func WithWeatherURL(url string) ToolboxOption {
	return func(t *Toolbox) { t.weatherURL = url }
}

func WithSerperURL(url string) ToolboxOption {
	return func(t *Toolbox) { t.serperURL = url }
}

func WithHTTPClient(client *http.Client) ToolboxOption {
	return func(t *Toolbox) { t.httpClient = client }
}

// WithClock replaces time.Now for the date and time tool
func WithClock(now func() time.Time) ToolboxOption {
	return func(t *Toolbox) { t.now = now }
}

func NewToolbox(opts ...ToolboxOption) *Toolbox {
	toolbox := &Toolbox{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Host
				}),
			),
		},
		weatherURL: defaultWeatherURL,
		serperURL:  defaultSerperURL,
		now:        time.Now,
	}
	if apiKey, ok := os.LookupEnv("SERPER_API_KEY"); ok {
		toolbox.serperAPIKey = apiKey
	}

	for _, opt := range opts {
		opt(toolbox)
	}
	return toolbox
}

// Tools returns the tool catalog offered to the model.
func (t *Toolbox) Tools() []llms.Tool {
	return []llms.Tool{
		llms.NewTool("get_weather", "Get the current weather for a specific city or location", t.weather),
		llms.NewTool("web_search", "Search the web for current information, news, or facts", t.webSearch),
		llms.NewTool("get_current_datetime", "Get the current date, time, day of week, or timezone information", t.currentDateTime),
		llms.NewTool("calculate", "Perform mathematical calculations", t.calculate),
		llms.NewTool("get_news", "Get latest news articles on a topic. Use this for news, current events, headlines, or recent happenings.", t.news),
	}
}
