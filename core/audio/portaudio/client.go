package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-voice/core/audio/portaudio")

// Client is a full duplex blocking PortAudio stream, mono linear16 at
// [audio.DefaultSampleRate].
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	captureMu     sync.Mutex
	stopCapture   context.CancelFunc
	captureClosed chan struct{}

	playbackMu    sync.Mutex
	leftoverAudio []byte
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.stopCapture != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	closed := make(chan struct{})
	c.stopCapture = cancel
	c.captureClosed = closed

	go func() {
		defer close(closed)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := c.stream.Read(); err != nil {
				logger.Warn("failed to read from portaudio stream", "error", err)
				continue
			}

			audioBuffer := bytes.Buffer{}
			if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
				logger.Warn("failed to encode captured audio", "error", err)
				continue
			}
			onAudio(audioBuffer.Bytes())
		}
	}()
	return nil
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	stop, closed := c.stopCapture, c.captureClosed
	c.stopCapture, c.captureClosed = nil, nil
	c.captureMu.Unlock()

	if stop != nil {
		stop()
		<-closed
	}
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) SendAudio(audio []byte) error {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return c.writeFrames(false)
}

func (c *Client) ClearBuffer() {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	c.leftoverAudio = nil
}

// AwaitMark writes out the remaining partial frame, padded with silence.
// Writes are blocking, so once it returns everything has been handed to the
// device.
func (c *Client) AwaitMark() error {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	return c.writeFrames(true)
}

func (c *Client) writeFrames(padLast bool) error {
	frameSize := c.bufferSize * 2
	for len(c.leftoverAudio) >= frameSize || (padLast && len(c.leftoverAudio) > 0) {
		frame := make([]byte, frameSize)
		n := copy(frame, c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[n:]

		if err := binary.Read(bytes.NewReader(frame), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode playback audio: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
