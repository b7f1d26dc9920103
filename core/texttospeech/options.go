package texttospeech

import "strings"

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// Voice describes one voice offered by a synthesis engine. Name is the
// engine specific identifier.
type Voice struct {
	Name     string
	Language string
	Gender   Gender
}

type SpeakOptions struct {
	Voice    Voice
	Language string
}

type SpeakOption func(*SpeakOptions)

func WithVoice(voice Voice) SpeakOption {
	return func(o *SpeakOptions) { o.Voice = voice }
}

func WithLanguage(language string) SpeakOption {
	return func(o *SpeakOptions) { o.Language = language }
}

func NewSpeakOptions(opts ...SpeakOption) SpeakOptions {
	options := SpeakOptions{Language: "en-US"}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// SelectVoice picks a voice of the given gender speaking language. It falls
// back to any voice in the language and then to any voice at all. Languages
// match on their primary subtag, so "en-US" matches a voice tagged "en".
func SelectVoice(voices []Voice, language string, gender Gender) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	var languageMatch *Voice
	for i, voice := range voices {
		if !sameLanguage(voice.Language, language) {
			continue
		}
		if gender == "" || voice.Gender == gender {
			return voice, true
		}
		if languageMatch == nil {
			languageMatch = &voices[i]
		}
	}
	if languageMatch != nil {
		return *languageMatch, true
	}

	return voices[0], true
}

func sameLanguage(a, b string) bool {
	return strings.EqualFold(primarySubtag(a), primarySubtag(b))
}

func primarySubtag(language string) string {
	language = strings.ReplaceAll(language, "_", "-")
	if i := strings.Index(language, "-"); i >= 0 {
		return language[:i]
	}
	return language
}
