package config

import (
	"os"
	"testing"
	"time"

	"salonbook/internal/availability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHours = `
weekdays:
  mon: {open: "09:00", close: "19:00"}
  tue: {open: "09:00", close: "19:00"}
  sat: {open: "10:00", close: "16:00"}
  sun: {closed: true}
holidays:
  - date: "2026-12-25"
    name: Christmas
overrides:
  - date: "2026-12-24"
    open: "09:00"
    close: "13:00"
`

func TestParseHoursConfig(t *testing.T) {
	cfg, err := ParseHoursConfig([]byte(sampleHours))
	require.NoError(t, err)

	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	w, open := cfg.WindowOn(monday)
	require.True(t, open)
	assert.Equal(t, availability.Window{Open: 540, Close: 1140}, w)

	_, open = cfg.WindowOn(monday.AddDate(0, 0, 2))
	assert.False(t, open, "unlisted weekdays are closed")

	christmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	_, open = cfg.WindowOn(christmas)
	assert.False(t, open)
	isHoliday, name := cfg.IsHoliday(christmas)
	assert.True(t, isHoliday)
	assert.Equal(t, "Christmas", name)

	w, open = cfg.WindowOn(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC))
	require.True(t, open)
	assert.Equal(t, 13*60, w.Close)

	slots := availability.Enumerate(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), cfg)
	assert.Len(t, slots, 12)
}

func TestParseHoursConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad close", `weekdays: {sat: {open: "09:00", close: "18:6"}}`, "weekdays.sat.close: invalid format '18:6', expected HH:MM"},
		{"missing open", `weekdays: {mon: {close: "18:00"}}`, "weekdays.mon.open is required"},
		{"close before open", `weekdays: {mon: {open: "18:00", close: "09:00"}}`, "weekdays.mon: open 18:00 must be before close 09:00"},
		{"unknown day", `weekdays: {funday: {open: "09:00", close: "10:00"}}`, "weekdays.funday: unknown weekday"},
		{"bad holiday", `holidays: [{date: "25.12.2026"}]`, "holidays[0]: invalid date format"},
		{"override on holiday", "holidays: [{date: \"2026-12-25\"}]\noverrides: [{date: \"2026-12-25\", open: \"09:00\", close: \"12:00\"}]", "also a holiday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHoursConfig([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHoursValidateDoesNotMutate(t *testing.T) {
	cfg := &HoursConfig{Weekdays: map[string]DayHoursConfig{"mon": {Open: "09:00", Close: "12:00"}}}
	require.NoError(t, cfg.Validate())
	assert.Nil(t, cfg.weekly)
}

func TestHoursWatcherPoll(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hours.yaml", sampleHours)

	holder := NewHoursHolder(nil)
	var reloads, failures int
	w := &hoursWatcher{path: path, holder: holder, notify: func(_ *HoursConfig, err error) {
		if err != nil {
			failures++
			return
		}
		reloads++
	}}
	require.NoError(t, w.load())
	assert.Equal(t, 1, reloads)
	assert.False(t, w.poll(), "unchanged file is not reloaded")

	saturday := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(path, []byte(`weekdays: {sat: {open: "08:00", close: "12:00"}}`), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.True(t, w.poll())
	win, open := holder.WindowOn(saturday)
	require.True(t, open)
	assert.Equal(t, 8*60, win.Open)

	require.NoError(t, os.WriteFile(path, []byte(`weekdays: {sat: {open: "xx"}}`), 0o644))
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.False(t, w.poll())
	assert.Equal(t, 1, failures)
	win, _ = holder.WindowOn(saturday)
	assert.Equal(t, 8*60, win.Open, "previous hours stay in place")
}
