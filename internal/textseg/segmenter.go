package textseg

import (
	"strings"
	"unicode"
)

// Segment splits content into ordered, contiguous portions according to
// policy. It is a pure function: the same (content, policy) always
// yields the same portions, and concatenating the portion contents in
// index order reproduces content byte for byte. Whitespace at a cut
// stays with the left portion.
func Segment(content string, policy Policy) ([]Portion, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, &PolicyError{Reason: "content is empty"}
	}

	runes := []rune(content)
	var chunks []string
	if policy.SentenceAligned {
		chunks = splitSentenceAligned(runes, policy)
	} else {
		chunks = splitByBudget(runes, policy)
	}

	portions := make([]Portion, 0, len(chunks))
	for i, c := range chunks {
		portions = append(portions, Portion{Index: i, Content: c})
	}
	return portions, nil
}

// splitByBudget cuts runes into budget-sized chunks without ever
// splitting inside a word. A word longer than the whole budget is the
// one exception: it is cut hard at the budget.
func splitByBudget(runes []rune, policy Policy) []string {
	var out []string
	rest := runes
	for len(rest) > 0 {
		var cut int
		switch policy.Unit {
		case UnitWords:
			cut = wordCut(rest, policy.MaxUnits)
		default:
			cut = charCut(rest, policy.MaxUnits)
		}
		out = append(out, string(rest[:cut]))
		rest = rest[cut:]
	}
	return out
}

// charCut returns the cut position for a chars-unit portion. Leading
// whitespace carried over from the previous cut rides along and does
// not count against the budget, so a word that fits the budget is never
// split just because a space precedes it. When the budget boundary
// lands inside a word, the cut backs off to just after the last space
// in the window.
func charCut(rest []rune, max int) int {
	lead := 0
	for lead < len(rest) && unicode.IsSpace(rest[lead]) {
		lead++
	}
	if len(rest)-lead <= max {
		return len(rest)
	}
	cut := lead + max
	if !unicode.IsSpace(rest[cut]) && !unicode.IsSpace(rest[cut-1]) {
		for j := cut - 1; j > lead; j-- {
			if unicode.IsSpace(rest[j]) {
				return j + 1
			}
		}
	}
	return cut
}

// wordCut returns the cut position just after the space that follows
// the max-th word.
func wordCut(rest []rune, max int) int {
	words := 0
	inWord := false
	for i, r := range rest {
		if unicode.IsSpace(r) {
			if inWord {
				words++
				inWord = false
				if words == max {
					return i + 1
				}
			}
		} else {
			inWord = true
		}
	}
	return len(rest)
}

// splitSentenceAligned accumulates whole sentences up to the budget.
// Each portion holds at least one sentence; a single sentence over the
// budget falls back to the word-boundary cut.
func splitSentenceAligned(runes []rune, policy Policy) []string {
	var out []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			out = append(out, string(current))
			current = nil
		}
	}

	for _, span := range sentenceSpans(runes) {
		sentence := runes[span[0]:span[1]]
		if unitCount(sentence, policy.Unit) > policy.MaxUnits {
			flush()
			out = append(out, splitByBudget(sentence, policy)...)
			continue
		}
		if len(current) > 0 && unitCount(current, policy.Unit)+unitCount(sentence, policy.Unit) > policy.MaxUnits {
			flush()
		}
		current = append(current, sentence...)
	}
	flush()
	return out
}

// sentenceSpans partitions runes into contiguous [start, end) sentence
// spans. A sentence ends after a run of terminators and the whitespace
// that follows it, so the spans cover the input exactly.
func sentenceSpans(runes []rune) [][2]int {
	var spans [][2]int
	start := 0
	i := 0
	for i < len(runes) {
		if isTerminator(runes[i]) {
			for i < len(runes) && isTerminator(runes[i]) {
				i++
			}
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			spans = append(spans, [2]int{start, i})
			start = i
			continue
		}
		i++
	}
	if start < len(runes) {
		spans = append(spans, [2]int{start, len(runes)})
	}
	return spans
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func unitCount(runes []rune, unit Unit) int {
	if unit == UnitWords {
		return len(strings.Fields(string(runes)))
	}
	return len(runes)
}
