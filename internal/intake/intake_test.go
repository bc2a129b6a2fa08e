package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driptext/driptext/internal/tracker"
)

func TestParseReply_TaggedForm(t *testing.T) {
	t.Parallel()

	body := "Hi!\n[1] La\n[2] rapide\n[3] chien.\nThanks"
	got, err := ParseReply(body)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "La", 1: "rapide", 2: "chien.\nThanks"}, got)
}

func TestParseReply_MultilineTag(t *testing.T) {
	t.Parallel()

	body := "[4] Une phrase\nsur deux lignes.\n[5] Une autre."
	got, err := ParseReply(body)
	require.NoError(t, err)
	assert.Equal(t, "Une phrase\nsur deux lignes.", got[3])
	assert.Equal(t, "Une autre.", got[4])
}

func TestParseReply_NumberedFallback(t *testing.T) {
	t.Parallel()

	body := "1. La\n2) rapide\n3. chien."
	got, err := ParseReply(body)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "La", 1: "rapide", 2: "chien."}, got)
}

func TestParseReply_Unresolved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "no tags", body: "here is my translation without tags"},
		{name: "empty", body: ""},
		{name: "tag without content", body: "[2]   "},
		{name: "zero tag", body: "[0] nothing is numbered zero"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseReply(tt.body)
			var unresolved *UnresolvedReplyError
			require.ErrorAs(t, err, &unresolved)
		})
	}
}

type stubTextIndex map[string]string

func (s stubTextIndex) TextIDByTitle(title string) (string, bool) {
	id, ok := s[title]
	return id, ok
}

func TestResolver(t *testing.T) {
	t.Parallel()

	reg := tracker.NewRegistry(nil)
	user, err := reg.CreateUser("Maria", "maria@example.com", "+15550199", tracker.ChannelEmail)
	require.NoError(t, err)
	asgFox, err := reg.Create(user.ID, "text-fox", 3, tracker.OverwriteLatest)
	require.NoError(t, err)

	texts := stubTextIndex{"Fox": "text-fox", "Prince": "text-prince"}
	resolver := NewResolver(reg, texts)

	t.Run("subject match", func(t *testing.T) {
		a, err := resolver.Resolve(Inbound{
			Sender:     "maria@example.com",
			Subject:    "Daily translation: Fox",
			ReceivedAt: time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, asgFox.ID, a.ID)
	})

	t.Run("no subject falls back to single assignment", func(t *testing.T) {
		a, err := resolver.Resolve(Inbound{Sender: "+15550199"})
		require.NoError(t, err)
		assert.Equal(t, asgFox.ID, a.ID)
	})

	t.Run("unknown sender", func(t *testing.T) {
		_, err := resolver.Resolve(Inbound{Sender: "stranger@example.com"})
		var unresolved *UnresolvedReplyError
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("subject names unassigned text", func(t *testing.T) {
		_, err := resolver.Resolve(Inbound{
			Sender:  "maria@example.com",
			Subject: "Daily translation: Prince",
		})
		var unresolved *UnresolvedReplyError
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("ambiguous with multiple assignments", func(t *testing.T) {
		_, err := reg.Create(user.ID, "text-prince", 5, tracker.OverwriteLatest)
		require.NoError(t, err)
		_, err = resolver.Resolve(Inbound{Sender: "+15550199"})
		var unresolved *UnresolvedReplyError
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("finished assignment does not block the fallback", func(t *testing.T) {
		// translate the fox text to completion; prince is then the only
		// assignment still taking portions
		for i := 0; i < 3; i++ {
			require.NoError(t, reg.Advance(asgFox.ID))
		}
		for i := 0; i < 3; i++ {
			_, err := reg.RecordSubmission(asgFox.ID, i, "fait", time.Now())
			require.NoError(t, err)
		}

		asgPrince, ok := reg.FindByPair(user.ID, "text-prince")
		require.True(t, ok)

		a, err := resolver.Resolve(Inbound{Sender: "+15550199"})
		require.NoError(t, err)
		assert.Equal(t, asgPrince.ID, a.ID)
	})
}
