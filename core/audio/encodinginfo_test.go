package audio

import (
	"testing"
	"time"
)

func TestEncodingInfoDuration(t *testing.T) {
	info := GetDefaultEncodingInfo()
	if got := info.Duration(32000); got != time.Second {
		t.Fatalf("expected one second of linear16 audio, got %v", got)
	}

	if got := (EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}).Duration(4000); got != 500*time.Millisecond {
		t.Fatalf("expected half a second of mulaw audio, got %v", got)
	}

	if got := (EncodingInfo{}).Duration(100); got != 0 {
		t.Fatalf("expected zero duration for unknown encoding, got %v", got)
	}
}

func TestEncodingInfoSilenceValue(t *testing.T) {
	testCases := map[Format]byte{
		EncodingLinear16: 0,
		EncodingALaw:     0x55,
		EncodingMulaw:    0xFF,
	}
	for format, expected := range testCases {
		if got := (EncodingInfo{SampleRate: 8000, Format: format}).SilenceValue(); got != expected {
			t.Fatalf("%s: expected silence %#x, got %#x", format, expected, got)
		}
	}
}
