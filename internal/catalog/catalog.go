// Package catalog filters and sorts the style list client-side. The list
// is small, so it is fetched once and kept for a TTL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"salonbook/internal/salonapi"
)

var ErrUnknownStyle = errors.New("unknown style")

// Categories offered in the picker. "all" disables the filter.
var Categories = []string{"all", "braids", "cut", "color", "styling"}

type Sort string

const (
	SortPopular   Sort = "popular"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortDuration  Sort = "duration"
)

func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortPopular, nil
	case SortPopular, SortPriceAsc, SortPriceDesc, SortDuration:
		return v, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

func ParseCategory(s string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(s))
	if c == "" {
		return "all", nil
	}
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Filter is a search over the loaded list.
type Filter struct {
	Query    string
	Category string
	Sort     Sort
}

// Apply returns the matching styles in the requested order. styles is not
// modified.
func Apply(styles []salonapi.Style, f Filter) []salonapi.Style {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	category := strings.ToLower(strings.TrimSpace(f.Category))

	out := make([]salonapi.Style, 0, len(styles))
	for _, s := range styles {
		if category != "" && category != "all" && s.Category != category {
			continue
		}
		if q != "" && !matches(s, q) {
			continue
		}
		out = append(out, s)
	}

	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceMin < out[j].PriceMin })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceMin > out[j].PriceMin })
	case SortDuration:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DurationMinutes < out[j].DurationMinutes })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].RatingAvg > out[j].RatingAvg })
	}
	return out
}

func matches(s salonapi.Style, q string) bool {
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.Description), q) ||
		strings.Contains(s.Category, q)
}

// Lister is the backend side of the catalog.
type Lister interface {
	ListStyles(ctx context.Context, q salonapi.StyleQuery) ([]salonapi.Style, error)
}

// Catalog caches the full style list.
type Catalog struct {
	lister Lister
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	styles   []salonapi.Style
	loadedAt time.Time
}

func New(lister Lister, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{lister: lister, ttl: ttl, now: time.Now}
}

// Styles returns the full list, reloading it once the TTL has passed. If a
// reload fails the previous list is served.
func (c *Catalog) Styles(ctx context.Context) ([]salonapi.Style, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.styles != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.styles, nil
	}
	styles, err := c.lister.ListStyles(ctx, salonapi.StyleQuery{})
	if err != nil {
		if c.styles != nil {
			return c.styles, nil
		}
		return nil, err
	}
	c.styles = styles
	c.loadedAt = c.now()
	return styles, nil
}

func (c *Catalog) Search(ctx context.Context, f Filter) ([]salonapi.Style, error) {
	styles, err := c.Styles(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(styles, f), nil
}

// Style looks up one style by id.
func (c *Catalog) Style(ctx context.Context, id string) (salonapi.Style, error) {
	styles, err := c.Styles(ctx)
	if err != nil {
		return salonapi.Style{}, err
	}
	for _, s := range styles {
		if s.ID == id {
			return s, nil
		}
	}
	return salonapi.Style{}, fmt.Errorf("%w: %s", ErrUnknownStyle, id)
}

// FormatPrice renders "$45" or "$45-60".
func FormatPrice(s salonapi.Style) string {
	if s.PriceMax > s.PriceMin {
		return "$" + money(s.PriceMin) + "-" + money(s.PriceMax)
	}
	return "$" + money(s.PriceMin)
}

func money(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatDuration renders minutes as "45m", "2h" or "1h 30m".
func FormatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
