// Package enrich serves near-real-time price data for entities from a
// rate-limited external oracle, with TTL caching and stale-while-revalidate.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tokenscope/internal/model"
)

// ErrRateLimited marks a throttled oracle response. The cache absorbs it into
// a status flag and keeps serving stale data.
var ErrRateLimited = errors.New("price oracle rate limited")

// Oracle fetches trading-pair data for one token address.
type Oracle interface {
	TokenPrice(ctx context.Context, address string) (model.PriceData, error)
}

// OracleConfig holds HTTP oracle client settings.
type OracleConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPOracle queries a DEX screener style endpoint, pacing outbound requests
// so no more than RateLimitMax calls leave within RateLimitWindow.
type HTTPOracle struct {
	cfg     OracleConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewHTTPOracle(cfg OracleConfig, logger *zap.Logger) *HTTPOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 60
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	return &HTTPOracle{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.RateLimitWindow/time.Duration(cfg.RateLimitMax)), 1),
		logger:  logger,
	}
}

type wirePair struct {
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
}

type wireResponse struct {
	Pairs []wirePair `json:"pairs"`
}

// TokenPrice blocks on the limiter, then issues a single lookup. A 429
// response maps to ErrRateLimited; other failures wrap the transport error.
func (o *HTTPOracle) TokenPrice(ctx context.Context, address string) (model.PriceData, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return model.PriceData{}, err
	}

	endpoint := strings.TrimRight(o.cfg.BaseURL, "/") + "/tokens/" + address
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.PriceData{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return model.PriceData{}, fmt.Errorf("fetch price %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		o.logger.Debug("oracle throttled", zap.String("address", address))
		return model.PriceData{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.PriceData{}, fmt.Errorf("fetch price %s: http %d: %s", address, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return model.PriceData{}, fmt.Errorf("decode price response: %w", err)
	}
	if len(wire.Pairs) == 0 {
		return model.PriceData{}, fmt.Errorf("no pairs for %s", address)
	}

	pair := wire.Pairs[0]
	data := model.PriceData{
		VolumeH24:      pair.Volume.H24,
		PriceChangeH24: pair.PriceChange.H24,
	}
	if pair.PriceUSD != "" {
		price, err := strconv.ParseFloat(pair.PriceUSD, 64)
		if err != nil {
			return model.PriceData{}, fmt.Errorf("parse priceUsd %q: %w", pair.PriceUSD, err)
		}
		data.PriceUSD = price
	}
	return data, nil
}
