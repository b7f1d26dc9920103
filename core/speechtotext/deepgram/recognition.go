package deepgram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/internal/utils"
)

type recognition struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	source  audio.Capture
	options speechtotext.RecognitionOptions

	mu             sync.Mutex
	finalSegments  []string
	heardSpeech    bool
	unendedSegment bool
	lastAudioTs    time.Time

	ended atomic.Bool
	done  chan struct{}
}

func newRecognition(conn *websocket.Conn, source audio.Capture, options speechtotext.RecognitionOptions) *recognition {
	return &recognition{
		conn:        conn,
		source:      source,
		options:     options,
		lastAudioTs: time.Now(),
		done:        make(chan struct{}),
	}
}

func (r *recognition) Stop() error {
	go r.finish(nil)
	return nil
}

func (r *recognition) Abort() error {
	go r.finish(speechtotext.NewRecognitionError(speechtotext.ErrorAborted, nil))
	return nil
}

// finish ends the recognition exactly once. Callbacks run after the stream
// has been released so a restart from within them opens a fresh session.
func (r *recognition) finish(recognitionErr *speechtotext.RecognitionError) {
	if !r.ended.CompareAndSwap(false, true) {
		return
	}
	close(r.done)

	if r.source != nil {
		if err := r.source.StopCapture(); err != nil {
			logger.Warn("failed to stop audio capture", "error", err)
		}
	}
	r.closeStream()

	transcript := ""
	if recognitionErr != nil {
		r.options.ErrorCallback(recognitionErr)
	} else {
		r.mu.Lock()
		transcript = strings.Join(r.finalSegments, " ")
		r.mu.Unlock()
	}
	r.options.EndCallback(transcript)
}

// discard tears down a recognition that never reached its caller. No
// callbacks run and capture is left alone.
func (r *recognition) discard() {
	if !r.ended.CompareAndSwap(false, true) {
		return
	}
	close(r.done)
	r.closeStream()
}

func (r *recognition) sendAudio(audio []byte) {
	if r.ended.Load() {
		return
	}
	r.mu.Lock()
	r.lastAudioTs = time.Now()
	r.mu.Unlock()

	if err := r.write(websocket.BinaryMessage, audio); err != nil {
		logger.Debug("failed to send audio to deepgram", "error", err)
	}
}

func (r *recognition) sendControl(messageType string) error {
	msg, err := json.Marshal(struct {
		Type string `json:"type"`
	}{Type: messageType})
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}
	return r.write(websocket.TextMessage, msg)
}

func (r *recognition) write(messageType int, data []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("connection closed")
	}
	if err := r.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (r *recognition) closeStream() {
	if err := r.sendControl(string(api.TypeCloseStreamResponse)); err != nil {
		logger.Debug("failed to close deepgram stream", "error", err)
	}

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *recognition) readMessages() {
	r.connMu.Lock()
	conn := r.conn
	r.connMu.Unlock()
	if conn == nil {
		return
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if r.ended.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.finish(nil)
				return
			}
			logger.Warn("failed to read deepgram websocket message", "error", err)
			r.finish(speechtotext.NewRecognitionError(speechtotext.ErrorNetwork, err))
			return
		}
		if msgType == websocket.TextMessage {
			r.processMessage(msg)
		}
	}
}

func (r *recognition) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}
		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		r.mu.Lock()
		if transcript != "" {
			r.heardSpeech = true
			r.unendedSegment = true
		}
		if msgResp.IsFinal && transcript != "" {
			r.finalSegments = append(r.finalSegments, transcript)
		}
		running := strings.Join(r.finalSegments, " ")
		if !msgResp.IsFinal && transcript != "" {
			running = strings.TrimSpace(running + " " + transcript)
		}
		speechEnded := msgResp.IsFinal && msgResp.SpeechFinal && len(r.finalSegments) > 0
		r.mu.Unlock()

		if transcript != "" {
			r.options.InterimTranscriptionCallback(running)
		}
		if speechEnded {
			r.finish(nil)
		}

	case api.TypeUtteranceEndResponse:
		r.mu.Lock()
		speechEnded := r.unendedSegment && len(r.finalSegments) > 0
		r.mu.Unlock()
		if speechEnded {
			r.finish(nil)
		}

	case api.TypeSpeechStartedResponse:
		r.mu.Lock()
		r.heardSpeech = true
		r.unendedSegment = true
		r.mu.Unlock()
	}
}

// watch ends the recognition with no-speech when nothing was heard within
// noSpeechTimeout and keeps the socket alive while the source is quiet.
func (r *recognition) watch(noSpeechTimeout time.Duration, encoding audio.EncodingInfo) {
	type silenceState string
	const (
		silenceStateWaiting   silenceState = "waiting"
		silenceStateSilence   silenceState = "silence"
		silenceStateKeepAlive silenceState = "keepAlive"
	)

	const durationMs = 50
	const millisecondsPerSecond = 1000
	ticker := time.NewTicker(durationMs * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*durationMs/millisecondsPerSecond)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	started := time.Now()
	state := silenceStateWaiting
	var firstSilenceTime, lastKeepAliveTime *time.Time
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		heardSpeech := r.heardSpeech
		sinceAudio := time.Since(r.lastAudioTs)
		r.mu.Unlock()

		if noSpeechTimeout > 0 && !heardSpeech && time.Since(started) >= noSpeechTimeout {
			r.finish(speechtotext.NewRecognitionError(speechtotext.ErrorNoSpeech, errors.New("no speech detected")))
			return
		}

		switch state {
		case silenceStateWaiting:
			if sinceAudio > durationMs*time.Millisecond {
				state = silenceStateSilence
				firstSilenceTime = utils.Ptr(time.Now())
			}

		case silenceStateSilence:
			if sinceAudio < durationMs*time.Millisecond {
				state = silenceStateWaiting
				firstSilenceTime = nil
				continue
			}
			if time.Since(*firstSilenceTime) >= time.Second {
				state = silenceStateKeepAlive
				lastKeepAliveTime = utils.Ptr(time.Now())
				firstSilenceTime = nil
				continue
			}
			if err := r.write(websocket.BinaryMessage, chunk); err != nil {
				logger.Debug("failed to send silence", "error", err)
			}

		case silenceStateKeepAlive:
			if sinceAudio < durationMs*time.Millisecond {
				state = silenceStateWaiting
				continue
			}
			if time.Since(*lastKeepAliveTime) >= 5*time.Second {
				lastKeepAliveTime = utils.Ptr(time.Now())
				if err := r.sendControl("KeepAlive"); err != nil {
					logger.Debug("failed to send keep alive", "error", err)
				}
			}
		}
	}
}
