package intake

import (
	"strings"

	"github.com/driptext/driptext/internal/dispatch"
	"github.com/driptext/driptext/internal/tracker"
)

// TextIndex resolves a text title from an outbound subject back to its
// ID.
type TextIndex interface {
	TextIDByTitle(title string) (string, bool)
}

// Resolver maps an inbound reply to the assignment it answers.
type Resolver struct {
	registry *tracker.Registry
	texts    TextIndex
}

func NewResolver(registry *tracker.Registry, texts TextIndex) *Resolver {
	return &Resolver{registry: registry, texts: texts}
}

// Resolve finds the assignment a reply belongs to. The sender contact
// must match a registered user; the text comes from the subject line
// when it carries the outbound prefix, otherwise from the user's
// single assignment. Anything ambiguous is an UnresolvedReply.
func (r *Resolver) Resolve(msg Inbound) (*tracker.Assignment, error) {
	user, ok := r.registry.UserByContact(strings.TrimSpace(msg.Sender))
	if !ok {
		return nil, &UnresolvedReplyError{Reason: "unknown sender " + msg.Sender}
	}

	if title, found := strings.CutPrefix(strings.TrimSpace(msg.Subject), dispatch.SubjectPrefix); found {
		textID, ok := r.texts.TextIDByTitle(strings.TrimSpace(title))
		if !ok {
			return nil, &UnresolvedReplyError{Reason: "no text titled " + strings.TrimSpace(title)}
		}
		a, ok := r.registry.FindByPair(user.ID, textID)
		if !ok {
			return nil, &UnresolvedReplyError{Reason: "user " + user.ID + " is not assigned text " + textID}
		}
		return a, nil
	}

	// no usable subject (SMS replies): only unambiguous when the user
	// has exactly one active assignment; fully translated ones no
	// longer take portions and do not count
	active := make([]*tracker.Assignment, 0)
	for _, a := range r.registry.ListByUser(user.ID) {
		if !a.Complete() {
			active = append(active, a)
		}
	}
	switch len(active) {
	case 0:
		return nil, &UnresolvedReplyError{Reason: "user " + user.ID + " has no active assignments"}
	case 1:
		return active[0], nil
	default:
		return nil, &UnresolvedReplyError{Reason: "user " + user.ID + " has multiple active assignments and the reply names no text"}
	}
}
