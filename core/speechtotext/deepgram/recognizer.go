package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultListenURL       = "wss://api.deepgram.com/v1/listen"
	defaultModel           = "nova-3"
	defaultNoSpeechTimeout = 8 * time.Second
)

// Recognizer runs one Deepgram streaming session per utterance, feeding it
// audio from the capture device while the recognition is running.
type Recognizer struct {
	apiKey          string
	model           string
	listenURL       string
	noSpeechTimeout time.Duration

	source audio.Capture
}

type RecognizerOption func(*Recognizer)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable
func WithAPIKey(apiKey string) RecognizerOption {
	return func(r *Recognizer) { r.apiKey = apiKey }
}

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) { r.model = model }
}

// WithNoSpeechTimeout sets how long a recognition waits for any speech
// before it ends with [speechtotext.ErrorNoSpeech].
func WithNoSpeechTimeout(timeout time.Duration) RecognizerOption {
	return func(r *Recognizer) { r.noSpeechTimeout = timeout }
}

func WithListenURL(listenURL string) RecognizerOption {
	return func(r *Recognizer) { r.listenURL = listenURL }
}

func NewRecognizer(source audio.Capture, opts ...RecognizerOption) (*Recognizer, error) {
	recognizer := &Recognizer{
		model:           defaultModel,
		listenURL:       defaultListenURL,
		noSpeechTimeout: defaultNoSpeechTimeout,
		source:          source,
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		recognizer.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(recognizer)
	}

	if recognizer.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if recognizer.source == nil {
		return nil, fmt.Errorf("audio source is required")
	}
	return recognizer, nil
}

func (r *Recognizer) Recognize(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Recognition, error) {
	ctx, span := tracer.Start(ctx, "start recognition")
	defer span.End()

	options := speechtotext.NewRecognitionOptions(
		append([]speechtotext.RecognitionOption{speechtotext.WithEncodingInfo(r.source.EncodingInfo())}, opts...)...,
	)
	span.SetAttributes(attribute.String("request.language", options.Language))

	encoding, sampleRate, err := listenEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connectWebsocket(ctx, connectionOptions{
		sampleRate: sampleRate,
		encoding:   encoding,
		language:   options.Language,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec := newRecognition(conn, r.source, options)
	go rec.readMessages()
	go rec.watch(r.noSpeechTimeout, options.EncodingInfo)

	if err := r.source.StartCapture(ctx, rec.sendAudio); err != nil {
		rec.discard()
		err = speechtotext.NewRecognitionError(speechtotext.ErrorAudioCapture, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return rec, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func (r *Recognizer) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, classifyDialError(resp, err)
	}

	return conn, nil
}

func classifyDialError(resp *http.Response, err error) error {
	err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return speechtotext.NewRecognitionError(speechtotext.ErrorServiceNotAllowed, err)
	}
	if errors.Is(err, context.Canceled) {
		return speechtotext.NewRecognitionError(speechtotext.ErrorAborted, err)
	}
	return speechtotext.NewRecognitionError(speechtotext.ErrorNetwork, err)
}
