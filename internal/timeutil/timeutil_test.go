package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"90m": 90 * time.Minute,
		"2d":  48 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseDuration("3y")
	require.Error(t, err)
}

func TestParseInstant(t *testing.T) {
	now := time.Date(2024, 5, 10, 13, 30, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"2020-01-02":           time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		"2020-01-02T03:04:05":  time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"2020-01-02 03:04:05":  time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"2020-01-02T03:04:05Z": time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"now":                  now,
		"today":                time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		"-2d":                  now.Add(-48 * time.Hour),
	}
	for in, want := range cases {
		got, err := ParseInstant(in, now)
		require.NoError(t, err, in)
		require.True(t, got.Equal(want), "%s: expected %v, got %v", in, want, got)
	}

	_, err := ParseInstant("yesterday-ish", now)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	ts := time.Date(2021, 7, 4, 8, 9, 10, 0, time.UTC)
	require.Equal(t, "2021-07-04", Render(ts, true))
	require.Equal(t, "2021-07-04T08:09:10", Render(ts, false))
}
