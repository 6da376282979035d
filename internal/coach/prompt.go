package coach

import (
	"fmt"
	"strings"
)

// SystemPrompt embeds the scenario persona and objective so replies stay in
// character.
func SystemPrompt(sc *Scenario) string {
	var b strings.Builder
	b.WriteString("You are playing a character in a communication skills practice session.\n\n")
	fmt.Fprintf(&b, "Scenario: %s\n", sc.Title)
	fmt.Fprintf(&b, "Your character: %s\n", sc.Persona)
	fmt.Fprintf(&b, "The learner's objective: %s\n\n", sc.Objective)
	b.WriteString("Stay in character at all times. Keep every reply short, 2-3 sentences, ")
	b.WriteString("conversational, and realistic. Never mention that you are an AI or that this is practice.")
	return b.String()
}

// OpeningInstruction is sent as the first user turn when a session has no
// history yet.
const OpeningInstruction = "Start the conversation by introducing yourself in character and opening the scenario naturally."

// RenderTranscript renders the ordered history as alternating
// "User:" / "Coach:" lines for the evaluation prompt.
func RenderTranscript(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Coach"
		if m.Role == "user" {
			speaker = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Content))
	}
	return strings.Join(lines, "\n")
}

// EvaluationPrompt asks for a compact JSON verdict over the transcript.
func EvaluationPrompt(sc *Scenario, transcript string) string {
	var b strings.Builder
	b.WriteString("You are an expert communication coach. Evaluate the learner's side of the ")
	b.WriteString("practice conversation below.\n\n")
	fmt.Fprintf(&b, "Scenario: %s\n", sc.Title)
	fmt.Fprintf(&b, "Learner's objective: %s\n\n", sc.Objective)
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString("Score the learner from 0 to 5 on clarity, empathy and assertiveness. ")
	b.WriteString("Write a short summary of how they did and three actionable recommendations.\n\n")
	b.WriteString("Return ONLY a JSON object with exactly this shape and nothing else:\n")
	b.WriteString(`{"summary": "...", "clarity": 0, "empathy": 0, "assertiveness": 0, "recommendations": "..."}`)
	return b.String()
}
