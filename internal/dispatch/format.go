package dispatch

import (
	"fmt"
	"strings"
)

// SubjectPrefix starts every outbound subject; intake uses it to
// resolve a reply back to its text.
const SubjectPrefix = "Daily translation: "

// FormatPortion builds the outbound message for one portion. The body
// tags the portion with its absolute 1-based number; replies must echo
// the tag so intake can map the translation back to the right portion,
// even when replies arrive late or out of order.
func FormatPortion(title string, index int, content string) Message {
	tag := index + 1

	var sb strings.Builder
	fmt.Fprintf(&sb, "Here is your next passage from '%s':\n\n", title)
	fmt.Fprintf(&sb, "[%d] %s\n\n", tag, strings.TrimSpace(content))
	sb.WriteString("Reply to this message with your translation, keeping the number tag:\n")
	fmt.Fprintf(&sb, "[%d] your translation\n", tag)

	return Message{
		Subject: SubjectPrefix + title,
		Body:    sb.String(),
	}
}
