package assistant

import (
	"github.com/dvloznov/finance-assistant/internal/conversation"
)

// Blob is binary content with its media type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a model request: either Text or Blob is set.
type Part struct {
	Text string
	Blob *Blob
}

// TextPart wraps s in a Part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// BlobPart wraps binary data in a Part.
func BlobPart(mimeType string, data []byte) Part {
	return Part{Blob: &Blob{MIMEType: mimeType, Data: data}}
}

// Assemble builds the ordered request parts for one analysis.
//
// Image:  [history?, system, image, user?]
// Audio:  [history?, system+transcription, audio, "Additional context from user: "+user?]
// Text:   a single part "history\n\nSystem: system" (or just system) followed
// by "\n\nUser: user" when a user prompt is given.
func Assemble(systemPrompt, userPrompt string, recent []conversation.Turn, att Attachment) []Part {
	history := conversation.Render(recent)

	switch a := att.(type) {
	case Image:
		var parts []Part
		if history != "" {
			parts = append(parts, TextPart(history))
		}
		parts = append(parts,
			TextPart(systemPrompt),
			BlobPart(orDefault(a.MIMEType, DefaultImageMIMEType), a.Data),
		)
		if userPrompt != "" {
			parts = append(parts, TextPart(userPrompt))
		}
		return parts

	case Audio:
		var parts []Part
		if history != "" {
			parts = append(parts, TextPart(history))
		}
		parts = append(parts,
			TextPart(systemPrompt+"\n\n"+TranscriptionInstruction),
			BlobPart(orDefault(a.MIMEType, DefaultAudioMIMEType), a.Data),
		)
		if userPrompt != "" {
			parts = append(parts, TextPart(AudioContextPrefix+userPrompt))
		}
		return parts

	default:
		content := systemPrompt
		if history != "" {
			content = history + "\n\nSystem: " + systemPrompt
		}
		if userPrompt != "" {
			content += "\n\nUser: " + userPrompt
		}
		return []Part{TextPart(content)}
	}
}
