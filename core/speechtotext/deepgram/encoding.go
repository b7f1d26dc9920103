package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/ema-voice/core/audio"
)

// sampleRates lists the rates the listen endpoint accepts for each encoding.
// The companded telephony encodings only come at 8kHz.
var sampleRates = map[audio.Format][]int{
	audio.EncodingLinear16: {8000, 16000, 24000, 32000, 48000},
	audio.EncodingALaw:     {8000},
	audio.EncodingMulaw:    {8000},
}

// listenEncoding validates the capture encoding and returns the encoding and
// sample rate query values for the listen socket.
func listenEncoding(encoding audio.EncodingInfo) (name string, sampleRate int, err error) {
	rates, ok := sampleRates[encoding.Format]
	if !ok {
		return "", 0, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	if !slices.Contains(rates, encoding.SampleRate) {
		return "", 0, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
	}
	return encoding.Format.Name(), encoding.SampleRate, nil
}
