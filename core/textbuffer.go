package orchestration

import (
	"iter"
	"strings"
)

// SentenceBuffer splits streamed text into complete sentences. A sentence
// ends at '.', '!' or '?' followed by whitespace; the trailing incomplete
// sentence is kept until more text arrives or the stream ends.
type SentenceBuffer struct {
	pending strings.Builder
}

// Add appends fragment and returns the sentences it completed, in order.
func (b *SentenceBuffer) Add(fragment string) []string {
	if fragment == "" {
		return nil
	}
	b.pending.WriteString(fragment)
	text := b.pending.String()

	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if !isSentenceTerminator(text[i]) || !isSentenceSpace(text[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(text[start : i+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}

	if start > 0 {
		rest := text[start:]
		b.pending.Reset()
		b.pending.WriteString(rest)
	}
	return sentences
}

// Flush returns the remaining text as the final sentence, empty when only
// whitespace is left.
func (b *SentenceBuffer) Flush() string {
	rest := strings.TrimSpace(b.pending.String())
	b.pending.Reset()
	return rest
}

// Pending returns the text not yet returned as a sentence.
func (b *SentenceBuffer) Pending() string {
	return b.pending.String()
}

// Sentences regroups a fragment stream into a sentence stream. An error ends
// the stream without flushing the incomplete sentence.
func Sentences(fragments iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var buffer SentenceBuffer
		for fragment, err := range fragments {
			if err != nil {
				yield("", err)
				return
			}
			for _, sentence := range buffer.Add(fragment) {
				if !yield(sentence, nil) {
					return
				}
			}
		}
		if rest := buffer.Flush(); rest != "" {
			yield(rest, nil)
		}
	}
}

func isSentenceTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSentenceSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
