package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

type playbackClient struct {
	device *malgo.Device
	mu     sync.Mutex

	// pending and marks are shared with the device callback
	bufferMu sync.Mutex
	pending  []byte
	marks    []playbackMark
}

// playbackMark is released once remaining bytes have been played, or the
// buffer is cleared.
type playbackMark struct {
	remaining int
	done      chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.enqueue(audio)
	return nil
}

func (c *playbackClient) enqueue(audio []byte) {
	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()
	c.pending = append(c.pending, audio...)
}

func (c *playbackClient) ClearBuffer() {
	c.bufferMu.Lock()
	c.pending = nil
	marks := c.marks
	c.marks = nil
	c.bufferMu.Unlock()

	for _, mark := range marks {
		close(mark.done)
	}
}

func (c *playbackClient) AwaitMark() error {
	c.bufferMu.Lock()
	if len(c.pending) == 0 {
		c.bufferMu.Unlock()
		return nil
	}
	mark := playbackMark{remaining: len(c.pending), done: make(chan struct{})}
	c.marks = append(c.marks, mark)
	c.bufferMu.Unlock()

	<-mark.done
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := min(int(frameCount)*bytesPerFrame, len(pOutput))

		c.bufferMu.Lock()
		played := copy(pOutput[:need], c.pending)
		c.pending = c.pending[played:]
		released := c.releaseMarks(played)
		c.bufferMu.Unlock()

		for i := played; i < need; i++ {
			pOutput[i] = 0
		}
		for _, mark := range released {
			close(mark.done)
		}
	}
}

// releaseMarks must be called with bufferMu held.
func (c *playbackClient) releaseMarks(played int) []playbackMark {
	var released []playbackMark
	kept := c.marks[:0]
	for _, mark := range c.marks {
		mark.remaining -= played
		if mark.remaining <= 0 || len(c.pending) == 0 {
			released = append(released, mark)
			continue
		}
		kept = append(kept, mark)
	}
	c.marks = kept
	return released
}
