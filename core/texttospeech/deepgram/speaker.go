package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

var ErrStreamClosed = errors.New("speech stream closed")

// Speaker streams text to Deepgram and plays the returned audio. The socket
// is kept open between calls and reopened when the voice changes.
type Speaker struct {
	apiKey   string
	speakURL string
	output   audio.Playback

	speakMu sync.Mutex

	mu     sync.Mutex
	stream *speechStream
}

type SpeakerOption func(*Speaker)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable
func WithAPIKey(apiKey string) SpeakerOption {
	return func(s *Speaker) { s.apiKey = apiKey }
}

func WithSpeakURL(speakURL string) SpeakerOption {
	return func(s *Speaker) { s.speakURL = speakURL }
}

func NewSpeaker(output audio.Playback, opts ...SpeakerOption) (*Speaker, error) {
	speaker := &Speaker{speakURL: defaultSpeakURL, output: output}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		speaker.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(speaker)
	}

	if speaker.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if speaker.output == nil {
		return nil, fmt.Errorf("audio output is required")
	}
	return speaker, nil
}

func (s *Speaker) Voices(context.Context) ([]texttospeech.Voice, error) {
	return GetAvailableVoices(), nil
}

// Speak blocks until text has been synthesized and played, or until ctx is
// cancelled, in which case pending audio is dropped.
func (s *Speaker) Speak(ctx context.Context, text string, opts ...texttospeech.SpeakOption) error {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	options := texttospeech.NewSpeakOptions(opts...)
	voice := options.Voice.Name
	if voice == "" {
		voice = defaultVoice
	}

	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()
	span.SetAttributes(attribute.String("request.voice", voice), attribute.Int("request.text_length", len(text)))

	stream, err := s.openStream(ctx, voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := stream.speak(text); err != nil {
		s.dropStream(stream)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	select {
	case <-ctx.Done():
		s.interrupt(stream)
		return ctx.Err()
	case <-stream.done:
		s.dropStream(stream)
		err := fmt.Errorf("failed to synthesize speech: %w", stream.err())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	case <-stream.flushed:
	}

	played := make(chan error, 1)
	go func() { played <- s.output.AwaitMark() }()
	select {
	case <-ctx.Done():
		s.output.ClearBuffer()
		<-played
		return ctx.Err()
	case err := <-played:
		if err != nil {
			err = fmt.Errorf("failed to play speech: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

// Close closes the open stream, if any.
func (s *Speaker) Close() error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		stream.close()
	}
	return nil
}

func (s *Speaker) openStream(ctx context.Context, voice string) (*speechStream, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream != nil && stream.voice == voice && !stream.isClosed() {
		stream.drainFlushed()
		return stream, nil
	}
	if stream != nil {
		s.dropStream(stream)
	}

	conn, err := s.connectWebsocket(ctx, voice, s.output.EncodingInfo())
	if err != nil {
		return nil, err
	}
	stream = newSpeechStream(conn, voice, s.output)
	go stream.readMessages()

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	return stream, nil
}

func (s *Speaker) dropStream(stream *speechStream) {
	s.mu.Lock()
	if s.stream == stream {
		s.stream = nil
	}
	s.mu.Unlock()
	stream.close()
}

func (s *Speaker) interrupt(stream *speechStream) {
	if err := stream.send(clearMsg); err != nil {
		logger.Debug("failed to clear deepgram buffer", "error", err)
	}
	s.dropStream(stream)
	s.output.ClearBuffer()
}

func (s *Speaker) connectWebsocket(ctx context.Context, voice string, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := url.Parse(s.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", voice)
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

type speechStream struct {
	voice  string
	output audio.Playback

	mu      sync.Mutex
	conn    *websocket.Conn
	readErr error

	flushed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSpeechStream(conn *websocket.Conn, voice string, output audio.Playback) *speechStream {
	return &speechStream{
		voice:   voice,
		output:  output,
		conn:    conn,
		flushed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *speechStream) speak(text string) error {
	if err := s.send(websocketMessage{Type: "Speak", Text: text}); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := s.send(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

func (s *speechStream) send(msg websocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrStreamClosed
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *speechStream) readMessages() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.isClosed() {
				logger.Warn("deepgram speak websocket read error", "error", err)
			}
			s.fail(err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := s.output.SendAudio(msg); err != nil {
				logger.Warn("failed to send audio to output", "error", err)
			}
		case websocket.TextMessage:
			s.processMessage(msg)
		}
	}
}

func (s *speechStream) processMessage(msg []byte) {
	var parsedMsg struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Debug("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch parsedMsg.Type {
	case "Flushed":
		select {
		case s.flushed <- struct{}{}:
		default:
		}
	case "Warning", "Error":
		logger.Warn("deepgram speak message", "type", parsedMsg.Type, "description", parsedMsg.Description)
	}
}

func (s *speechStream) drainFlushed() {
	select {
	case <-s.flushed:
	default:
	}
}

func (s *speechStream) fail(err error) {
	s.mu.Lock()
	if s.readErr == nil {
		s.readErr = err
	}
	s.mu.Unlock()
	s.close()
}

func (s *speechStream) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return s.readErr
	}
	return ErrStreamClosed
}

func (s *speechStream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *speechStream) close() {
	s.closeOnce.Do(func() {
		_ = s.send(closeMsg)

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
		close(s.done)
	})
}
