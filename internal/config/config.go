package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds engine configuration loaded from flags, env, or config file.
// Every named constant of the engine is independently overridable.
type Config struct {
	FeedBaseURL   string
	OracleBaseURL string
	Feeds         []string

	CountPerSource int
	RankLimit      int
	SearchLimit    int

	CapDeltaWeight float64
	VolumeWeight   float64
	HoldersWeight  float64

	CacheTTL        time.Duration
	CacheRetention  time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	BatchSize       int
	PollInterval    time.Duration

	FetchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	Out      string
	PGDSN    string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("feeds", []string{"gainers", "by-volume", "newest", "most-valuable"})
	v.SetDefault("count-per-source", 20)
	v.SetDefault("rank-limit", 50)
	v.SetDefault("search-limit", 15)
	v.SetDefault("cap-delta-weight", 1.5)
	v.SetDefault("volume-weight", 0.001)
	v.SetDefault("holders-weight", 2.0)
	v.SetDefault("cache-ttl", 30*time.Second)
	v.SetDefault("cache-retention", 5*time.Minute)
	v.SetDefault("rate-limit-max", 60)
	v.SetDefault("rate-limit-window", time.Minute)
	v.SetDefault("batch-size", 3)
	v.SetDefault("poll-interval", 10*time.Second)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		FeedBaseURL:     v.GetString("feed-base-url"),
		OracleBaseURL:   v.GetString("oracle-base-url"),
		Feeds:           getStringSlice(v, "feeds"),
		CountPerSource:  v.GetInt("count-per-source"),
		RankLimit:       v.GetInt("rank-limit"),
		SearchLimit:     v.GetInt("search-limit"),
		CapDeltaWeight:  v.GetFloat64("cap-delta-weight"),
		VolumeWeight:    v.GetFloat64("volume-weight"),
		HoldersWeight:   v.GetFloat64("holders-weight"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		CacheRetention:  v.GetDuration("cache-retention"),
		RateLimitMax:    v.GetInt("rate-limit-max"),
		RateLimitWindow: v.GetDuration("rate-limit-window"),
		BatchSize:       v.GetInt("batch-size"),
		PollInterval:    v.GetDuration("poll-interval"),
		FetchTimeout:    v.GetDuration("fetch-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
