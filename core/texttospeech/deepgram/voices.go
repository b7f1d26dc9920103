package deepgram

import "github.com/koscakluka/ema-voice/core/texttospeech"

const defaultVoice = "aura-2-thalia-en"

var voices = []texttospeech.Voice{
	{Name: "aura-2-thalia-en", Language: "en", Gender: texttospeech.GenderFemale},
	{Name: "aura-2-andromeda-en", Language: "en", Gender: texttospeech.GenderFemale},
	{Name: "aura-2-helena-en", Language: "en", Gender: texttospeech.GenderFemale},
	{Name: "aura-2-apollo-en", Language: "en", Gender: texttospeech.GenderMale},
	{Name: "aura-2-arcas-en", Language: "en", Gender: texttospeech.GenderMale},
	{Name: "aura-2-aries-en", Language: "en", Gender: texttospeech.GenderMale},
	{Name: "aura-2-celeste-es", Language: "es", Gender: texttospeech.GenderFemale},
	{Name: "aura-2-nestor-es", Language: "es", Gender: texttospeech.GenderMale},
}

// GetAvailableVoices returns the Deepgram Aura voice catalog.
func GetAvailableVoices() []texttospeech.Voice {
	return append([]texttospeech.Voice(nil), voices...)
}
