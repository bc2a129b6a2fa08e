package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_Daily(t *testing.T) {
	t.Parallel()

	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	info, err := GetTriggerInfo("0 8 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 4*time.Hour, info.TimeSinceLast)
	assert.Equal(t, 20*time.Hour, info.TimeUntilNext)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	t.Parallel()

	_, err := GetTriggerInfo("not a cron", time.Now())
	require.Error(t, err)
}
