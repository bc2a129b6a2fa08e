package textseg

import (
	"regexp"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// Portion is one ordered, contiguous slice of a Text, dispatched to a
// user in a single message. Immutable once the text is segmented.
type Portion struct {
	TextID  string `json:"text_id"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Text is a registered source text together with its segmentation.
type Text struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Author     string       `json:"author,omitempty"`
	SourceLang language.Tag `json:"source_lang"`
	TargetLang language.Tag `json:"target_lang"`
	// Content is the whitespace-normalized source. Concatenating all
	// portions in index order reproduces it exactly.
	Content   string    `json:"content"`
	Portions  []Portion `json:"portions"`
	CreatedAt time.Time `json:"created_at"`
}

// CyclesToComplete reports how many dispatch cycles a user needs to
// receive the whole text at perCycle portions per cycle.
func (t *Text) CyclesToComplete(perCycle int) int {
	if perCycle <= 0 {
		perCycle = 1
	}
	return (len(t.Portions) + perCycle - 1) / perCycle
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize collapses every whitespace run to a single space and trims
// the ends. This is the documented normalization the round-trip law is
// stated against.
func Normalize(content string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(content, " "))
}

// DetectLanguage guesses the language of content. Returns language.Und
// when detection is not confident enough to act on.
func DetectLanguage(content string) language.Tag {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return language.Und
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return language.Und
	}
	return tag
}
