package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type contentChunkStub string

func (c contentChunkStub) FinishReason() *string { return nil }
func (c contentChunkStub) Content() string       { return string(c) }

type toolCallChunkStub struct{ call llms.ToolCall }

func (c toolCallChunkStub) FinishReason() *string   { return nil }
func (c toolCallChunkStub) ToolCall() llms.ToolCall { return c.call }

type streamPass struct {
	chunks []llms.StreamChunk
	err    error
}

type streamStub struct {
	pass streamPass
	gate chan struct{}
}

func (s streamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if s.gate != nil {
			select {
			case <-s.gate:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		for _, chunk := range s.pass.chunks {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if s.pass.err != nil {
			yield(nil, s.pass.err)
		}
	}
}

// streamLLMStub replays one scripted pass per request. Requests beyond the
// script get an empty pass.
type streamLLMStub struct {
	passes []streamPass
	gate   chan struct{}

	mu      sync.Mutex
	prompts []string
	options []llms.PromptOptions
}

func (s *streamLLMStub) PromptWithStream(_ context.Context, prompt string, opts ...llms.PromptOption) llms.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	s.options = append(s.options, llms.NewPromptOptions(opts...))

	var pass streamPass
	if index < len(s.passes) {
		pass = s.passes[index]
	}
	return streamStub{pass: pass, gate: s.gate}
}

func (s *streamLLMStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *streamLLMStub) call(i int) (string, llms.PromptOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[i], s.options[i]
}

type promptLLMStub struct {
	responses []*llms.Response
	err       error

	mu      sync.Mutex
	options []llms.PromptOptions
}

func (s *promptLLMStub) Prompt(_ context.Context, _ string, opts ...llms.PromptOption) (*llms.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := len(s.options)
	s.options = append(s.options, llms.NewPromptOptions(opts...))
	if s.err != nil {
		return nil, s.err
	}
	if index < len(s.responses) {
		return s.responses[index], nil
	}
	return &llms.Response{}, nil
}

type recognitionStub struct {
	options speechtotext.RecognitionOptions
	aborts  atomic.Int32
	ended   atomic.Bool
}

func (r *recognitionStub) Stop() error {
	go r.finish(nil, "")
	return nil
}

func (r *recognitionStub) Abort() error {
	r.aborts.Add(1)
	go r.finish(speechtotext.NewRecognitionError(speechtotext.ErrorAborted, nil), "")
	return nil
}

func (r *recognitionStub) interim(transcript string) {
	r.options.InterimTranscriptionCallback(transcript)
}

func (r *recognitionStub) final(transcript string) {
	r.finish(nil, transcript)
}

func (r *recognitionStub) fail(code speechtotext.ErrorCode) {
	r.finish(speechtotext.NewRecognitionError(code, nil), "")
}

func (r *recognitionStub) finish(err *speechtotext.RecognitionError, transcript string) {
	if !r.ended.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		r.options.ErrorCallback(err)
	}
	r.options.EndCallback(transcript)
}

type recognizerStub struct {
	err error

	mu           sync.Mutex
	recognitions []*recognitionStub
}

func (r *recognizerStub) Recognize(_ context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Recognition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	recognition := &recognitionStub{options: speechtotext.NewRecognitionOptions(opts...)}
	r.recognitions = append(r.recognitions, recognition)
	return recognition, nil
}

func (r *recognizerStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recognitions)
}

func (r *recognizerStub) last() *recognitionStub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recognitions) == 0 {
		return nil
	}
	return r.recognitions[len(r.recognitions)-1]
}

type synthesizerStub struct {
	voices []texttospeech.Voice
	delay  time.Duration
	block  chan struct{}

	voiceCalls atomic.Int32

	mu        sync.Mutex
	spoken    []string
	options   []texttospeech.SpeakOptions
	active    int
	maxActive int
	cancelled int
}

func (s *synthesizerStub) Voices(context.Context) ([]texttospeech.Voice, error) {
	s.voiceCalls.Add(1)
	return s.voices, nil
}

func (s *synthesizerStub) Speak(ctx context.Context, text string, opts ...texttospeech.SpeakOption) error {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.spoken = append(s.spoken, text)
	s.options = append(s.options, texttospeech.NewSpeakOptions(opts...))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			s.markCancelled()
			return ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.markCancelled()
			return ctx.Err()
		}
	}
	return nil
}

func (s *synthesizerStub) markCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled++
}

func (s *synthesizerStub) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *synthesizerStub) stats() (active, maxActive, cancelled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.maxActive, s.cancelled
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) has(kind events.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Kind() == kind {
			return true
		}
	}
	return false
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

func (r *eventRecorder) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []string
	for _, event := range r.events {
		if changed, ok := event.(events.StateChanged); ok {
			states = append(states, changed.To)
		}
	}
	return states
}
