package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tokenscope/internal/model"
)

// Well-known explore list names exposed by the upstream provider.
const (
	ListTopGainers   = "gainers"
	ListTopVolume    = "by-volume"
	ListNewest       = "newest"
	ListMostValuable = "most-valuable"
)

// ClientConfig holds HTTP feed client settings.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client queries a paginated explore endpoint and adapts one list into a
// Source.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// List returns a Source bound to one named explore list.
func (c *Client) List(name string) Source {
	return &listSource{client: c, name: name}
}

type listSource struct {
	client *Client
	name   string
}

func (s *listSource) Name() string { return s.name }

func (s *listSource) Fetch(ctx context.Context, count int, cursor string) (Page, error) {
	return s.client.fetchList(ctx, s.name, count, cursor)
}

type wirePage struct {
	Tokens     []wireToken `json:"tokens"`
	NextCursor string      `json:"nextCursor"`
}

type wireToken struct {
	ID             string     `json:"id"`
	Address        string     `json:"address"`
	Name           string     `json:"name"`
	Symbol         string     `json:"symbol"`
	CreatedAt      string     `json:"createdAt"`
	MarketCap      flexNumber `json:"marketCap"`
	Volume24h      flexNumber `json:"volume24h"`
	MarketCapDelta flexNumber `json:"marketCapDelta24h"`
	UniqueHolders  int64      `json:"uniqueHolders"`
	ImageURI       string     `json:"imageUri"`
}

// flexNumber accepts both JSON numbers and numeric strings; upstream feeds
// are inconsistent about which they emit.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", trimmed, err)
	}
	*f = flexNumber(value)
	return nil
}

func (c *Client) fetchList(ctx context.Context, list string, count int, cursor string) (Page, error) {
	endpoint, err := c.listURL(list, count, cursor)
	if err != nil {
		return Page{}, err
	}

	var wire wirePage
	err = withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &wire)
	})
	if err != nil {
		return Page{}, err
	}

	entities := make([]model.Entity, 0, len(wire.Tokens))
	for _, token := range wire.Tokens {
		entities = append(entities, token.toEntity())
	}
	return Page{Entities: entities, NextCursor: wire.NextCursor}, nil
}

func (c *Client) listURL(list string, count int, cursor string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	base = base.JoinPath("explore", list)

	query := base.Query()
	query.Set("count", strconv.Itoa(count))
	if cursor != "" {
		query.Set("after", cursor)
	}
	base.RawQuery = query.Encode()
	return base.String(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: http %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (t wireToken) toEntity() model.Entity {
	entity := model.Entity{
		ID:                t.ID,
		Address:           t.Address,
		Name:              t.Name,
		Symbol:            t.Symbol,
		MarketCap:         float64(t.MarketCap),
		Volume24h:         float64(t.Volume24h),
		MarketCapDelta24h: float64(t.MarketCapDelta),
		UniqueHolders:     t.UniqueHolders,
		ImageURI:          t.ImageURI,
	}
	if t.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			entity.CreatedAt = ts
		}
	}
	return entity
}
