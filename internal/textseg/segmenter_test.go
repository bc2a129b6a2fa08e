package textseg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_CharBudget(t *testing.T) {
	t.Parallel()

	content := "The quick brown fox jumps over the lazy dog."
	portions, err := Segment(content, Policy{MaxUnits: 20, Unit: UnitChars})
	require.NoError(t, err)

	require.Len(t, portions, 3)
	assert.Equal(t, "The quick brown fox ", portions[0].Content)
	assert.Equal(t, "jumps over the lazy ", portions[1].Content)
	assert.Equal(t, "dog.", portions[2].Content)
	for i, p := range portions {
		assert.Equal(t, i, p.Index)
	}
}

func TestSegment_WordBudget(t *testing.T) {
	t.Parallel()

	portions, err := Segment("one two three four five", Policy{MaxUnits: 2, Unit: UnitWords})
	require.NoError(t, err)

	require.Len(t, portions, 3)
	assert.Equal(t, "one two ", portions[0].Content)
	assert.Equal(t, "three four ", portions[1].Content)
	assert.Equal(t, "five", portions[2].Content)
}

func TestSegment_WordFillingBudgetAfterCut(t *testing.T) {
	t.Parallel()

	// the previous cut lands exactly at a word end, so the next window
	// starts with the separator space; the following word fits the
	// budget and must stay intact
	portions, err := Segment("abcd efgh", Policy{MaxUnits: 4, Unit: UnitChars})
	require.NoError(t, err)

	require.Len(t, portions, 2)
	assert.Equal(t, "abcd", portions[0].Content)
	assert.Equal(t, " efgh", portions[1].Content)

	portions, err = Segment("one two six ten", Policy{MaxUnits: 3, Unit: UnitChars})
	require.NoError(t, err)
	require.Len(t, portions, 4)
	for i, want := range []string{"one", " two", " six", " ten"} {
		assert.Equal(t, want, portions[i].Content)
	}
}

func TestSegment_SentenceAligned(t *testing.T) {
	t.Parallel()

	portions, err := Segment("A b. C d. E f.", Policy{MaxUnits: 10, Unit: UnitChars, SentenceAligned: true})
	require.NoError(t, err)

	require.Len(t, portions, 2)
	assert.Equal(t, "A b. C d. ", portions[0].Content)
	assert.Equal(t, "E f.", portions[1].Content)
}

func TestSegment_SentenceLongerThanBudget(t *testing.T) {
	t.Parallel()

	portions, err := Segment("Short. This sentence is clearly much longer than the budget allows.", Policy{MaxUnits: 20, Unit: UnitChars, SentenceAligned: true})
	require.NoError(t, err)

	// the oversized sentence falls back to word-boundary cuts
	require.Greater(t, len(portions), 2)
	assert.Equal(t, "Short. ", portions[0].Content)
	for _, p := range portions {
		assert.LessOrEqual(t, len([]rune(p.Content)), 20)
	}
}

func TestSegment_ShortContentSinglePortion(t *testing.T) {
	t.Parallel()

	portions, err := Segment("tiny", Policy{MaxUnits: 100, Unit: UnitChars})
	require.NoError(t, err)
	require.Len(t, portions, 1)
	assert.Equal(t, "tiny", portions[0].Content)
	assert.Equal(t, 0, portions[0].Index)
}

func TestSegment_RoundTrip(t *testing.T) {
	t.Parallel()

	contents := []string{
		"The quick brown fox jumps over the lazy dog.",
		"One. Two! Three? Four… and a trailing clause without terminator",
		"a b c d e f g h i j k l m n o p",
		"Averyveryverylongsingleword and then some more text.",
	}
	policies := []Policy{
		{MaxUnits: 5, Unit: UnitChars},
		{MaxUnits: 20, Unit: UnitChars},
		{MaxUnits: 3, Unit: UnitWords},
		{MaxUnits: 15, Unit: UnitChars, SentenceAligned: true},
		{MaxUnits: 4, Unit: UnitWords, SentenceAligned: true},
	}

	for _, content := range contents {
		for _, policy := range policies {
			portions, err := Segment(content, policy)
			require.NoError(t, err)

			var sb strings.Builder
			for i, p := range portions {
				require.Equal(t, i, p.Index)
				sb.WriteString(p.Content)
			}
			assert.Equal(t, content, sb.String(), "policy %+v", policy)
		}
	}
}

func TestSegment_Deterministic(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxUnits: 12, Unit: UnitChars, SentenceAligned: true}
	first, err := Segment("Some text. More text. Even more.", policy)
	require.NoError(t, err)
	second, err := Segment("Some text. More text. Even more.", policy)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSegment_InvalidPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		policy  Policy
	}{
		{name: "zero max units", content: "text", policy: Policy{MaxUnits: 0, Unit: UnitChars}},
		{name: "negative max units", content: "text", policy: Policy{MaxUnits: -3, Unit: UnitWords}},
		{name: "unknown unit", content: "text", policy: Policy{MaxUnits: 5, Unit: Unit("sentences")}},
		{name: "empty content", content: "", policy: Policy{MaxUnits: 5, Unit: UnitChars}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Segment(tt.content, tt.policy)
			var perr *PolicyError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", Normalize("  a\n\nb\t c "))
	assert.Equal(t, "", Normalize(" \n\t "))
}
