// Package salonapi is the HTTP client of the salon REST backend. Every
// response is normalized here into one canonical schema.
package salonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"salonbook/internal/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Client calls the salon backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     oauth2.TokenSource
	loc        *time.Location

	redis    *redis.Client
	cacheTTL time.Duration
	takenTTL time.Duration
}

// New constructs a client for baseURL, e.g. "https://salon.example/api".
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for the catalog and the
// taken feed. A zero ttl disables caching for that kind of data.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl, takenTTL time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
	c.takenTTL = takenTTL
}

// UseRateLimit throttles outbound requests. perSecond <= 0 disables it.
func (c *Client) UseRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// WithTokenSource returns a shallow copy that authenticates requests with
// tokens from ts. The copy shares the HTTP client, cache and limiter.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// SetLocation sets the zone used for timestamps the backend sends without
// an offset. Defaults to time.Local.
func (c *Client) SetLocation(loc *time.Location) {
	c.loc = loc
}

func (c *Client) location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// HealthCheck reports whether the backend answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

type call struct {
	op     string // metrics label
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var body io.Reader = http.NoBody
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return err
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.addHeaders(req)

	if cl.auth {
		if c.tokens == nil {
			return ErrUnauthorized
		}
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPI(cl.op, 0, time.Since(start))
		return err
	}
	defer resp.Body.Close()
	metrics.ObserveAPI(cl.op, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Status: resp.StatusCode, Detail: errorDetail(raw)}
}

// errorDetail flattens the backend's error bodies: {"detail": "..."} or
// per-field lists like {"email": ["already taken"]}.
func errorDetail(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		text := string(raw)
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	if d, ok := obj["detail"].(string); ok {
		return d
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			parts = append(parts, k+": "+v)
		case []any:
			msgs := make([]string, 0, len(v))
			for _, m := range v {
				msgs = append(msgs, fmt.Sprint(m))
			}
			parts = append(parts, k+": "+strings.Join(msgs, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any, ttl time.Duration) {
	if c.redis == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cachePrefix+key, data, ttl).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cachePrefix+key).Err()
}

const cachePrefix = "salonbook:"
