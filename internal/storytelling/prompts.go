package storytelling

import (
	"fmt"
	"strings"

	"github.com/moodtales/storyteller/internal/source"
)

const outputFormat = `OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format:

{
  "analysis": "A short analysis of the mood, atmosphere and scene",
  "story": "The opening of the story"
}

Do not wrap the JSON in markdown and do not add any other text.`

// GenerationPrompt returns the instruction sent alongside a payload. Image and
// document payloads travel as inline content, so their prompt only refers to
// the attachment; URL and text payloads are embedded in the prompt itself.
func GenerationPrompt(p source.Payload) string {
	var subject, material string

	switch v := p.(type) {
	case source.Image:
		subject = "the attached image"
	case source.Document:
		subject = "the attached document"
	case source.RemoteURL:
		subject = "the web page at the URL below"
		material = "URL: " + strings.TrimSpace(v.URL)
	case source.PlainText:
		subject = "the text below"
		material = "TEXT:\n" + v.Text
	default:
		subject = "the provided source"
	}

	prompt := fmt.Sprintf(`You are a novelist with a gift for atmosphere. Study %s closely.

INSTRUCTIONS:
1. Analyze its mood and scene: the emotional tone, the setting, the light and colour, the sounds one might hear,
   and any tension or stillness it suggests. Keep the analysis to two or three sentences.
2. Write the opening of a story, between 100 and 150 words, that matches that atmosphere. Use vivid sensory
   detail, introduce a character or a presence, and end on a line that makes the reader want to continue.

%s`, subject, outputFormat)

	if material != "" {
		prompt += "\n\n" + material
	}
	return prompt
}

// ChatPrompt assembles one self-contained chat turn from the grounding
// context. Prior turns are not replayed.
func ChatPrompt(message, story, analysis string, hasImage bool) string {
	var b strings.Builder
	b.WriteString("You are the storyteller who wrote the story opening below. Answer the reader's message in character as a ")
	b.WriteString("thoughtful creative companion: discuss the world, the characters and what might happen next, and keep ")
	b.WriteString("your reply consistent with the story and its mood. Keep replies under 200 words.\n")

	if hasImage {
		b.WriteString("\nThe image that inspired the story is attached.\n")
	}
	if analysis = strings.TrimSpace(analysis); analysis != "" {
		b.WriteString("\nMOOD ANALYSIS:\n")
		b.WriteString(analysis)
		b.WriteString("\n")
	}
	if story = strings.TrimSpace(story); story != "" {
		b.WriteString("\nSTORY:\n")
		b.WriteString(story)
		b.WriteString("\n")
	}

	b.WriteString("\nREADER:\n")
	b.WriteString(strings.TrimSpace(message))
	return b.String()
}

// NarrationPrompt wraps story text for speech models that take a style cue.
func NarrationPrompt(story string) string {
	return "Read this story opening aloud slowly, in a warm and atmospheric storytelling voice:\n\n" + strings.TrimSpace(story)
}
