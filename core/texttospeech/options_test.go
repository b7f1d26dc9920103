package texttospeech

import "testing"

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{Name: "en-male", Language: "en", Gender: GenderMale},
		{Name: "en-female", Language: "en-US", Gender: GenderFemale},
		{Name: "es-male", Language: "es", Gender: GenderMale},
	}

	testCases := []struct {
		name     string
		language string
		gender   Gender
		want     string
	}{
		{name: "gender and language", language: "en-US", gender: GenderFemale, want: "en-female"},
		{name: "primary subtag match", language: "en-GB", gender: GenderMale, want: "en-male"},
		{name: "language fallback", language: "es-ES", gender: GenderFemale, want: "es-male"},
		{name: "any voice fallback", language: "de-DE", gender: GenderFemale, want: "en-male"},
		{name: "no gender preference", language: "es", want: "es-male"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			voice, ok := SelectVoice(voices, tc.language, tc.gender)
			if !ok {
				t.Fatalf("expected a voice to be selected")
			}
			if voice.Name != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, voice.Name)
			}
		})
	}
}

func TestSelectVoiceWithoutVoices(t *testing.T) {
	if _, ok := SelectVoice(nil, "en-US", GenderFemale); ok {
		t.Fatalf("expected no voice to be selected")
	}
}
