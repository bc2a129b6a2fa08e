package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Inbound is one raw reply handed over by the mail or SMS webhook.
type Inbound struct {
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// UnresolvedReplyError reports a reply that cannot be matched to an
// assignment or portion. Surfaced for manual reconciliation, never
// guessed around.
type UnresolvedReplyError struct {
	Reason string
}

func (e *UnresolvedReplyError) Error() string {
	return fmt.Sprintf("unresolved reply: %s", e.Reason)
}

var (
	tagPattern  = regexp.MustCompile(`\[(\d+)\]`)
	linePattern = regexp.MustCompile(`^\s*(\d+)[.)]\s*(.*)$`)
)

// ParseReply extracts translations from a reply body. The primary form
// is the `[n]` tag echoed from the outbound message; `n.` or `n)` at
// the start of a line is accepted as a fallback. Tags carry absolute
// 1-based portion numbers; the returned map is keyed by 0-based
// portion index. A body with no parseable tags is an UnresolvedReply.
func ParseReply(body string) (map[int]string, error) {
	translations := parseTagged(body)
	if len(translations) == 0 {
		translations = parseNumberedLines(body)
	}
	if len(translations) == 0 {
		return nil, &UnresolvedReplyError{Reason: "no portion tags found in reply body"}
	}
	return translations, nil
}

func parseTagged(body string) map[int]string {
	locs := tagPattern.FindAllStringSubmatchIndex(body, -1)
	out := make(map[int]string)
	for i, loc := range locs {
		n, err := strconv.Atoi(body[loc[2]:loc[3]])
		if err != nil || n < 1 {
			continue
		}
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(body[loc[1]:end])
		if content == "" {
			continue
		}
		out[n-1] = content
	}
	return out
}

func parseNumberedLines(body string) map[int]string {
	out := make(map[int]string)
	current := -1
	var buf []string

	flush := func() {
		if current < 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content != "" {
			out[current] = content
		}
		current = -1
		buf = nil
	}

	for _, line := range strings.Split(body, "\n") {
		if m := linePattern.FindStringSubmatch(line); m != nil {
			flush()
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				continue
			}
			current = n - 1
			buf = []string{m[2]}
			continue
		}
		if current >= 0 {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}
