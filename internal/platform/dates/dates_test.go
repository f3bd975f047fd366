package dates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween_IgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2025, 1, 15, 23, 59, 0, 0, time.UTC)
	to := time.Date(2025, 1, 16, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(from, to))
	assert.Equal(t, -1, DaysBetween(to, from))
	assert.Equal(t, 0, DaysBetween(from, from))
}

func TestAddDays_CrossesLeapYear(t *testing.T) {
	got := AddDays(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 365)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got = AddDays(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 365)
	assert.Equal(t, time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestParsePtr(t *testing.T) {
	p, err := ParsePtr("  ")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParsePtr("2025-03-01")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, time.March, p.Month())

	_, err = ParsePtr("01/03/2025")
	assert.Error(t, err)
}

func TestDate_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 7, 4, 15, 30, 0, 0, time.UTC)
	b, err := json.Marshal(struct {
		D *Date `json:"d"`
		N *Date `json:"n"`
	}{D: Ptr(&ts)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-07-04","n":null}`, string(b))
}
