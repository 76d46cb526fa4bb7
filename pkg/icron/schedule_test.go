package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	_, err := Parse("0 0 * * *")
	assert.NoError(t, err)

	_, err = Parse("@daily")
	assert.NoError(t, err)

	_, err = Parse("0 0 0 * * *")
	assert.Error(t, err)

	_, err = Parse("not cron")
	assert.Error(t, err)
}

func TestGetTriggerInfo_Daily(t *testing.T) {
	ref := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 0 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 15*time.Hour+30*time.Minute, info.TimeSinceLast)
	assert.Equal(t, 8*time.Hour+30*time.Minute, info.TimeUntilNext)
	assert.Equal(t, "0 0 * * *", info.Expression)
}

func TestGetTriggerInfo_EveryFiveMinutes(t *testing.T) {
	ref := time.Date(2026, 3, 10, 15, 33, 0, 0, time.UTC)

	info, err := GetTriggerInfo("*/5 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC), info.Last)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 35, 0, 0, time.UTC), info.Next)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("bogus", time.Now())
	assert.Error(t, err)
}
