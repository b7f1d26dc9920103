package speechtotext

import "github.com/koscakluka/ema-voice/core/audio"

type RecognitionOptions struct {
	// Language is the BCP-47 tag of the spoken language
	Language string

	// InterimTranscriptionCallback receives the running transcript of the
	// utterance, final segments followed by the current interim guess
	InterimTranscriptionCallback func(transcript string)
	// ErrorCallback is called at most once per recognition, before
	// EndCallback
	ErrorCallback func(err *RecognitionError)
	// EndCallback is called exactly once when the recognition ends, with the
	// finalized transcript of the utterance. The transcript is empty when
	// nothing was recognized or the recognition failed.
	EndCallback func(transcript string)

	EncodingInfo audio.EncodingInfo
}

type RecognitionOption func(*RecognitionOptions)

func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.Language = language
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithErrorCallback(callback func(err *RecognitionError)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEndCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EndCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// NewRecognitionOptions applies opts over defaults where every callback is a
// no-op.
func NewRecognitionOptions(opts ...RecognitionOption) RecognitionOptions {
	options := RecognitionOptions{
		Language:                     "en-US",
		InterimTranscriptionCallback: func(string) {},
		ErrorCallback:                func(*RecognitionError) {},
		EndCallback:                  func(string) {},
		EncodingInfo:                 audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.InterimTranscriptionCallback == nil {
		options.InterimTranscriptionCallback = func(string) {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(*RecognitionError) {}
	}
	if options.EndCallback == nil {
		options.EndCallback = func(string) {}
	}
	return options
}
