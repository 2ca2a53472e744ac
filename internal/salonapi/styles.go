package salonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
)

// Style is a bookable service in canonical form.
type Style struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category,omitempty"`
	Description     string  `json:"description,omitempty"`
	PriceMin        float64 `json:"priceMin"`
	PriceMax        float64 `json:"priceMax"`
	DurationMinutes int     `json:"durationMinutes"`
	ImageURL        string  `json:"imageUrl,omitempty"`
	RatingAvg       float64 `json:"ratingAvg"`
}

// styleWire accepts both the snake_case and the camelCase payloads, plus
// the legacy duration_mins field.
type styleWire struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description"`

	PriceMin      flexNumber `json:"price_min"`
	PriceMinCamel flexNumber `json:"priceMin"`
	Price         flexNumber `json:"price"`
	PriceMax      flexNumber `json:"price_max"`
	PriceMaxCamel flexNumber `json:"priceMax"`

	DurationMinutes      flexNumber `json:"duration_minutes"`
	DurationMinutesCamel flexNumber `json:"durationMinutes"`
	DurationMins         flexNumber `json:"duration_mins"`
	DurationMinsCamel    flexNumber `json:"durationMins"`

	ImageURL      string `json:"image_url"`
	ImageURLCamel string `json:"imageUrl"`

	RatingAvg      flexNumber `json:"rating_avg"`
	RatingAvgCamel flexNumber `json:"ratingAvg"`
}

func (w styleWire) normalize() (Style, error) {
	id := string(w.ID)
	if id == "" {
		return Style{}, fmt.Errorf("id: missing")
	}
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return Style{}, fmt.Errorf("style %s: name: missing", id)
	}
	dur, ok := firstNumber(w.DurationMinutes, w.DurationMinutesCamel, w.DurationMins, w.DurationMinsCamel)
	if !ok {
		return Style{}, fmt.Errorf("style %s: duration_minutes: missing", id)
	}
	if dur <= 0 || dur != math.Trunc(dur) {
		return Style{}, fmt.Errorf("style %s: duration_minutes: must be a positive whole number, got %v", id, dur)
	}

	priceMin, _ := firstNumber(w.PriceMin, w.PriceMinCamel, w.Price)
	priceMax, ok := firstNumber(w.PriceMax, w.PriceMaxCamel)
	if !ok || priceMax < priceMin {
		priceMax = priceMin
	}
	rating, _ := firstNumber(w.RatingAvg, w.RatingAvgCamel)

	return Style{
		ID:              id,
		Name:            name,
		Category:        strings.ToLower(strings.TrimSpace(w.Category)),
		Description:     strings.TrimSpace(w.Description),
		PriceMin:        priceMin,
		PriceMax:        priceMax,
		DurationMinutes: int(dur),
		ImageURL:        firstString(w.ImageURL, w.ImageURLCamel),
		RatingAvg:       rating,
	}, nil
}

// StyleQuery narrows the server-side listing. Empty fields are omitted.
type StyleQuery struct {
	Search   string
	Category string
	Sort     string
}

func (q StyleQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Category != "" && q.Category != "all" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

func (q StyleQuery) cacheKey() string {
	return "styles:" + q.values().Encode()
}

// ListStyles returns the catalog. Entries are cached when a cache is set.
func (c *Client) ListStyles(ctx context.Context, q StyleQuery) ([]Style, error) {
	var styles []Style
	if c.readCache(ctx, q.cacheKey(), &styles) {
		return styles, nil
	}

	var raw json.RawMessage
	if err := c.do(ctx, call{op: "styles", method: http.MethodGet, path: "/styles/", query: q.values()}, &raw); err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}
	wires, err := decodeList[styleWire](raw)
	if err != nil {
		return nil, fmt.Errorf("list styles: decode: %w", err)
	}

	styles = make([]Style, 0, len(wires))
	for i, w := range wires {
		s, err := w.normalize()
		if err != nil {
			return nil, fmt.Errorf("list styles: styles[%d]: %w", i, err)
		}
		styles = append(styles, s)
	}
	c.writeCache(ctx, q.cacheKey(), styles, c.cacheTTL)
	return styles, nil
}

// GetStyle looks one style up by id.
func (c *Client) GetStyle(ctx context.Context, id string) (*Style, error) {
	var cached Style
	if c.readCache(ctx, "style:"+id, &cached) {
		return &cached, nil
	}

	var w styleWire
	err := c.do(ctx, call{op: "style", method: http.MethodGet, path: "/styles/" + url.PathEscape(id) + "/"}, &w)
	if err != nil {
		return nil, fmt.Errorf("get style %s: %w", id, err)
	}
	s, err := w.normalize()
	if err != nil {
		return nil, fmt.Errorf("get style %s: %w", id, err)
	}
	c.writeCache(ctx, "style:"+id, s, c.cacheTTL)
	return &s, nil
}
