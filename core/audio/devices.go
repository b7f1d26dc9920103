package audio

import "context"

// Capture is a microphone-like audio source.
type Capture interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() EncodingInfo
}

// Playback is a speaker-like audio sink.
type Playback interface {
	SendAudio(audio []byte) error
	// ClearBuffer drops any audio not yet played. Pending AwaitMark calls
	// return.
	ClearBuffer()
	// AwaitMark blocks until all audio sent so far has been played.
	AwaitMark() error
	EncodingInfo() EncodingInfo
}
