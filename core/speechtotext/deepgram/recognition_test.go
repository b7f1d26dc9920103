package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type captureStub struct {
	stopCalls atomic.Int32
}

func (c *captureStub) StartCapture(context.Context, func([]byte)) error { return nil }
func (c *captureStub) StopCapture() error {
	c.stopCalls.Add(1)
	return nil
}
func (c *captureStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

type failingCaptureStub struct {
	captureStub
}

func (c *failingCaptureStub) StartCapture(context.Context, func([]byte)) error {
	return errors.New("microphone busy")
}

type recordedCallbacks struct {
	mu       sync.Mutex
	interims []string
	errs     []*speechtotext.RecognitionError
	ends     []string
}

func (c *recordedCallbacks) options() speechtotext.RecognitionOptions {
	return speechtotext.NewRecognitionOptions(
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.interims = append(c.interims, transcript)
		}),
		speechtotext.WithErrorCallback(func(err *speechtotext.RecognitionError) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		}),
		speechtotext.WithEndCallback(func(transcript string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.ends = append(c.ends, transcript)
		}),
	)
}

func (c *recordedCallbacks) snapshot() ([]string, []*speechtotext.RecognitionError, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.interims...),
		append([]*speechtotext.RecognitionError(nil), c.errs...),
		append([]string(nil), c.ends...)
}

func resultsMessage(transcript string, isFinal, speechFinal bool) []byte {
	final := "false"
	if isFinal {
		final = "true"
	}
	speech := "false"
	if speechFinal {
		speech = "true"
	}
	return []byte(`{"type":"Results","channel":{"alternatives":[{"transcript":"` + transcript +
		`"}]},"is_final":` + final + `,"speech_final":` + speech + `}`)
}

func TestRecognitionAccumulatesFinalSegments(t *testing.T) {
	callbacks := &recordedCallbacks{}
	source := &captureStub{}
	rec := newRecognition(nil, source, callbacks.options())

	rec.processMessage(resultsMessage("what is", false, false))
	rec.processMessage(resultsMessage("what is the", true, false))
	rec.processMessage(resultsMessage("weather", false, false))
	rec.processMessage(resultsMessage("weather today", true, true))

	interims, errs, ends := callbacks.snapshot()
	wantInterims := []string{"what is", "what is the", "what is the weather", "what is the weather today"}
	if len(interims) != len(wantInterims) {
		t.Fatalf("expected %d interim updates, got %v", len(wantInterims), interims)
	}
	for i := range wantInterims {
		if interims[i] != wantInterims[i] {
			t.Fatalf("interim %d: expected %q, got %q", i, wantInterims[i], interims[i])
		}
	}
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(ends) != 1 || ends[0] != "what is the weather today" {
		t.Fatalf("expected single end with full transcript, got %v", ends)
	}
	if source.stopCalls.Load() != 1 {
		t.Fatalf("expected capture to be stopped once, got %d", source.stopCalls.Load())
	}
}

func TestRecognitionEndsOnUtteranceEnd(t *testing.T) {
	callbacks := &recordedCallbacks{}
	rec := newRecognition(nil, &captureStub{}, callbacks.options())

	rec.processMessage([]byte(`{"type":"UtteranceEnd"}`))
	if _, _, ends := callbacks.snapshot(); len(ends) != 0 {
		t.Fatalf("expected utterance end without speech to be ignored, got %v", ends)
	}

	rec.processMessage(resultsMessage("hello", true, false))
	rec.processMessage([]byte(`{"type":"UtteranceEnd"}`))

	if _, _, ends := callbacks.snapshot(); len(ends) != 1 || ends[0] != "hello" {
		t.Fatalf("expected end with %q, got %v", "hello", ends)
	}
}

func TestRecognitionAbortReportsAbortedOnce(t *testing.T) {
	callbacks := &recordedCallbacks{}
	rec := newRecognition(nil, &captureStub{}, callbacks.options())
	rec.processMessage(resultsMessage("partial", true, false))

	if err := rec.Abort(); err != nil {
		t.Fatalf("unexpected abort error: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	waitForCondition(t, time.Second, "recognition end", func() bool {
		_, _, ends := callbacks.snapshot()
		return len(ends) > 0
	})
	time.Sleep(20 * time.Millisecond)

	_, errs, ends := callbacks.snapshot()
	if len(ends) != 1 {
		t.Fatalf("expected exactly one end callback, got %v", ends)
	}
	if len(errs) == 1 {
		if errs[0].Code != speechtotext.ErrorAborted {
			t.Fatalf("expected aborted error, got %v", errs[0])
		}
		if ends[0] != "" {
			t.Fatalf("expected empty transcript after abort, got %q", ends[0])
		}
	} else if len(errs) != 0 {
		t.Fatalf("expected at most one error, got %v", errs)
	}
}

func TestRecognitionNoSpeechTimeout(t *testing.T) {
	callbacks := &recordedCallbacks{}
	rec := newRecognition(nil, &captureStub{}, callbacks.options())

	go rec.watch(100*time.Millisecond, audio.GetDefaultEncodingInfo())

	waitForCondition(t, time.Second, "recognition end", func() bool {
		_, _, ends := callbacks.snapshot()
		return len(ends) == 1
	})

	_, errs, ends := callbacks.snapshot()
	if len(errs) != 1 || errs[0].Code != speechtotext.ErrorNoSpeech {
		t.Fatalf("expected no-speech error, got %v", errs)
	}
	if ends[0] != "" {
		t.Fatalf("expected empty transcript, got %q", ends[0])
	}
}

func TestRecognitionSpeechStartedDisablesNoSpeechTimeout(t *testing.T) {
	callbacks := &recordedCallbacks{}
	rec := newRecognition(nil, &captureStub{}, callbacks.options())
	rec.processMessage([]byte(`{"type":"SpeechStarted"}`))

	go rec.watch(60*time.Millisecond, audio.GetDefaultEncodingInfo())
	time.Sleep(200 * time.Millisecond)

	if _, errs, ends := callbacks.snapshot(); len(errs) != 0 || len(ends) != 0 {
		t.Fatalf("expected recognition to keep running, got errors %v ends %v", errs, ends)
	}
	_ = rec.Stop()
}

func TestClassifyDialError(t *testing.T) {
	testCases := []struct {
		name string
		resp *http.Response
		err  error
		want speechtotext.ErrorCode
	}{
		{name: "unauthorized", resp: &http.Response{StatusCode: http.StatusUnauthorized}, err: errors.New("bad handshake"), want: speechtotext.ErrorServiceNotAllowed},
		{name: "forbidden", resp: &http.Response{StatusCode: http.StatusForbidden}, err: errors.New("bad handshake"), want: speechtotext.ErrorServiceNotAllowed},
		{name: "network", err: errors.New("dial tcp: no route to host"), want: speechtotext.ErrorNetwork},
		{name: "cancelled", err: context.Canceled, want: speechtotext.ErrorAborted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyDialError(tc.resp, tc.err)
			var recognitionErr *speechtotext.RecognitionError
			if !errors.As(err, &recognitionErr) {
				t.Fatalf("expected recognition error, got %T", err)
			}
			if recognitionErr.Code != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, recognitionErr.Code)
			}
		})
	}
}

func TestListenEncoding(t *testing.T) {
	name, rate, err := listenEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "linear16" || rate != 16000 {
		t.Fatalf("unexpected encoding %q at %d", name, rate)
	}

	testCases := []struct {
		name     string
		encoding audio.EncodingInfo
	}{
		{name: "mulaw above 8kHz", encoding: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}},
		{name: "unsupported rate", encoding: audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}},
		{name: "unknown format", encoding: audio.EncodingInfo{SampleRate: 16000, Format: "opus"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := listenEncoding(tc.encoding); err == nil {
				t.Fatal("expected encoding to be rejected")
			}
		})
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func TestRecognizeCaptureFailureFiresNoCallbacks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	source := &failingCaptureStub{}
	recognizer, err := NewRecognizer(source,
		WithAPIKey("test-key"),
		WithListenURL("ws"+strings.TrimPrefix(server.URL, "http")),
	)
	if err != nil {
		t.Fatalf("failed to create recognizer: %v", err)
	}

	callbacks := &recordedCallbacks{}
	opts := callbacks.options()
	_, err = recognizer.Recognize(context.Background(),
		speechtotext.WithErrorCallback(opts.ErrorCallback),
		speechtotext.WithEndCallback(opts.EndCallback),
	)
	var recognitionErr *speechtotext.RecognitionError
	if !errors.As(err, &recognitionErr) || recognitionErr.Code != speechtotext.ErrorAudioCapture {
		t.Fatalf("expected audio capture error, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	_, errs, ends := callbacks.snapshot()
	if len(errs) != 0 || len(ends) != 0 {
		t.Fatalf("expected no callbacks after a failed start, got %d errors %d ends", len(errs), len(ends))
	}
	if calls := source.stopCalls.Load(); calls != 0 {
		t.Fatalf("expected capture not to be stopped, got %d calls", calls)
	}
}
