package orchestration

import (
	"fmt"
	"strings"
	"time"
)

// Persona describes who the assistant presents itself as.
type Persona struct {
	Name        string
	Personality string
}

var defaultPersona = Persona{
	Name:        "Ema",
	Personality: "friendly, curious and concise",
}

// DefaultInstructions builds the system instructions for a voice assistant:
// who it is, what day it is and how answers should sound when spoken.
func DefaultInstructions(persona Persona, now time.Time) string {
	if persona.Name == "" {
		persona.Name = defaultPersona.Name
	}
	if persona.Personality == "" {
		persona.Personality = defaultPersona.Personality
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a voice assistant. Your personality is %s.\n", persona.Name, persona.Personality)
	fmt.Fprintf(&b, "Today is %s.\n\n", now.Format("Monday, January 2, 2006"))
	b.WriteString("Your answers are read out loud, so:\n")
	b.WriteString("- Keep answers short, one to three sentences unless asked for more.\n")
	b.WriteString("- Do not use markdown, lists, tables, emojis or code blocks.\n")
	b.WriteString("- Write numbers, dates and units the way they are spoken.\n")
	b.WriteString("- Use the available tools for weather, news, web search, calculations and the current time instead of guessing.\n")
	return b.String()
}

func withMemoryContext(instructions, memoryContext string) string {
	if strings.TrimSpace(memoryContext) == "" {
		return instructions
	}
	return instructions + "\n" + memoryContext
}
