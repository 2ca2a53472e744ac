package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"salonbook/internal/availability"

	"gopkg.in/yaml.v3"
)

// DayHoursConfig is one weekday entry of hours.yaml.
type DayHoursConfig struct {
	Open   string `yaml:"open"`  // "09:00"
	Close  string `yaml:"close"` // "19:00"
	Closed bool   `yaml:"closed"`
}

// HolidayConfig closes the salon for one date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"`
}

// OverrideConfig replaces the weekly window for one date.
type OverrideConfig struct {
	Date  string `yaml:"date"`
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// HoursConfig is the root of hours.yaml. It implements availability.Schedule.
type HoursConfig struct {
	Weekdays  map[string]DayHoursConfig `yaml:"weekdays"`
	Holidays  []HolidayConfig           `yaml:"holidays"`
	Overrides []OverrideConfig          `yaml:"overrides"`

	weekly    availability.BusinessHours
	overrides map[string]availability.Window
	holidays  map[string]string
}

var weekdayKeys = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// DefaultHoursConfig is used when no hours.yaml exists.
func DefaultHoursConfig() *HoursConfig {
	return &HoursConfig{
		weekly:    availability.DefaultBusinessHours(),
		overrides: map[string]availability.Window{},
		holidays:  map[string]string{},
	}
}

// LoadHoursConfig loads and validates hours configuration from a YAML file.
func LoadHoursConfig(path string) (*HoursConfig, error) {
	if path == "" {
		path = "configs/hours.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hours config: %w", err)
	}
	return ParseHoursConfig(data)
}

// ParseHoursConfig parses hours.yaml content.
func ParseHoursConfig(data []byte) (*HoursConfig, error) {
	var cfg HoursConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse hours config: %w", err)
	}
	if err := cfg.compile(); err != nil {
		return nil, fmt.Errorf("validate hours config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the raw YAML fields.
func (c *HoursConfig) Validate() error {
	probe := HoursConfig{Weekdays: c.Weekdays, Holidays: c.Holidays, Overrides: c.Overrides}
	return probe.compile()
}

func (c *HoursConfig) compile() error {
	weekly := availability.BusinessHours{}
	if len(c.Weekdays) == 0 {
		weekly = availability.DefaultBusinessHours()
	}

	keys := make([]string, 0, len(c.Weekdays))
	for k := range c.Weekdays {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		day, ok := weekdayKeys[strings.ToLower(key)]
		if !ok {
			return fmt.Errorf("weekdays.%s: unknown weekday", key)
		}
		entry := c.Weekdays[key]
		if entry.Closed {
			delete(weekly, day)
			continue
		}
		w, err := parseWindow(entry.Open, entry.Close, "weekdays."+key)
		if err != nil {
			return err
		}
		weekly[day] = w
	}

	holidays := make(map[string]string, len(c.Holidays))
	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holidays[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holidays[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		holidays[h.Date] = h.Name
	}

	overrides := make(map[string]availability.Window, len(c.Overrides))
	for i, o := range c.Overrides {
		prefix := fmt.Sprintf("overrides[%d]", i)
		if _, err := time.Parse("2006-01-02", o.Date); err != nil {
			return fmt.Errorf("%s: invalid date format '%s', expected YYYY-MM-DD", prefix, o.Date)
		}
		if _, clash := holidays[o.Date]; clash {
			return fmt.Errorf("%s: %s is also a holiday", prefix, o.Date)
		}
		w, err := parseWindow(o.Open, o.Close, prefix)
		if err != nil {
			return err
		}
		overrides[o.Date] = w
	}

	c.weekly = weekly
	c.holidays = holidays
	c.overrides = overrides
	return nil
}

func parseWindow(open, closeAt, prefix string) (availability.Window, error) {
	if open == "" {
		return availability.Window{}, fmt.Errorf("%s.open is required", prefix)
	}
	if closeAt == "" {
		return availability.Window{}, fmt.Errorf("%s.close is required", prefix)
	}
	o, err := time.Parse("15:04", open)
	if err != nil {
		return availability.Window{}, fmt.Errorf("%s.open: invalid format '%s', expected HH:MM", prefix, open)
	}
	cl, err := time.Parse("15:04", closeAt)
	if err != nil {
		return availability.Window{}, fmt.Errorf("%s.close: invalid format '%s', expected HH:MM", prefix, closeAt)
	}
	w := availability.Window{Open: o.Hour()*60 + o.Minute(), Close: cl.Hour()*60 + cl.Minute()}
	if err := w.Validate(); err != nil {
		return availability.Window{}, fmt.Errorf("%s: %w", prefix, err)
	}
	return w, nil
}

// WindowOn implements availability.Schedule: holidays close the day,
// overrides replace the weekly window.
func (c *HoursConfig) WindowOn(date time.Time) (availability.Window, bool) {
	key := date.Format("2006-01-02")
	if _, ok := c.holidays[key]; ok {
		return availability.Window{}, false
	}
	if w, ok := c.overrides[key]; ok {
		return w, true
	}
	return c.weekly.WindowOn(date)
}

// IsHoliday checks if a date is a holiday.
func (c *HoursConfig) IsHoliday(date time.Time) (bool, string) {
	name, ok := c.holidays[date.Format("2006-01-02")]
	return ok, name
}

// BusinessHours returns the weekly part of the schedule.
func (c *HoursConfig) BusinessHours() availability.BusinessHours {
	return c.weekly
}

// String returns a summary of the configuration.
func (c *HoursConfig) String() string {
	return fmt.Sprintf("HoursConfig: %d open weekdays, %d holidays, %d overrides",
		len(c.weekly), len(c.holidays), len(c.overrides))
}

// HoursHolder publishes the latest HoursConfig to concurrent readers. It
// implements availability.Schedule so reloads take effect immediately.
type HoursHolder struct {
	cur atomic.Pointer[HoursConfig]
}

func NewHoursHolder(initial *HoursConfig) *HoursHolder {
	if initial == nil {
		initial = DefaultHoursConfig()
	}
	h := &HoursHolder{}
	h.cur.Store(initial)
	return h
}

func (h *HoursHolder) Store(cfg *HoursConfig) {
	if cfg != nil {
		h.cur.Store(cfg)
	}
}

func (h *HoursHolder) Current() *HoursConfig {
	return h.cur.Load()
}

func (h *HoursHolder) WindowOn(date time.Time) (availability.Window, bool) {
	return h.cur.Load().WindowOn(date)
}
