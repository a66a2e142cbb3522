// Package config provides runtime configuration values for the client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"propdesk/internal/model"
)

// API base URLs per environment; PROPDESK_API_URL overrides either.
const (
	localAPIURL      = "http://localhost:3000/api"
	productionAPIURL = "https://property-managment-x0d8.onrender.com/api"
)

// ViewPolicy controls background refresh behavior for one resource kind.
type ViewPolicy struct {
	RefreshEvery   time.Duration
	RefetchOnFocus bool
}

// Config holds configuration knobs for the gateway, cache and views.
type Config struct {
	APIBaseURL     string
	Environment    string
	RequestTimeout time.Duration
	StaleAfter     time.Duration
	EvictAfter     time.Duration
	SearchDebounce time.Duration
	ClientPageSize int
	LogLevel       string
	LogFormat      string
	Views          map[model.Kind]ViewPolicy
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

// Load collects configuration from .env, environment and the optional
// per-view policy file named by PROPDESK_VIEWS_FILE.
func Load() Config {
	_ = godotenv.Load()

	env := getenv("PROPDESK_ENV", "production")
	base := productionAPIURL
	if env == "local" || env == "development" {
		base = localAPIURL
	}
	cfg := Config{
		APIBaseURL:     getenv("PROPDESK_API_URL", base),
		Environment:    env,
		RequestTimeout: durenvms("PROPDESK_REQUEST_TIMEOUT_MS", 10000),
		StaleAfter:     durenvms("PROPDESK_STALE_MS", 10000),
		EvictAfter:     durenvms("PROPDESK_EVICT_GRACE_MS", 300000),
		SearchDebounce: durenvms("PROPDESK_SEARCH_DEBOUNCE_MS", 500),
		ClientPageSize: atoienv("PROPDESK_CLIENT_PAGE_SIZE", 100),
		LogLevel:       getenv("PROPDESK_LOG_LEVEL", "info"),
		LogFormat:      getenv("PROPDESK_LOG_FORMAT", "json"),
		Views: map[model.Kind]ViewPolicy{
			model.KindProperties: {RefreshEvery: 30 * time.Second, RefetchOnFocus: false},
			model.KindClients:    {RefreshEvery: 5 * time.Second, RefetchOnFocus: true},
		},
	}

	if path := getenv("PROPDESK_VIEWS_FILE", ""); path != "" {
		if err := cfg.loadViewsFile(path); err != nil {
			// Bad policy files fall back to defaults rather than aborting.
			fmt.Fprintf(os.Stderr, "propdesk: views file %s: %v\n", path, err)
		}
	}
	return cfg
}

type viewPolicyYAML struct {
	RefreshEvery   string `yaml:"refresh_every"`
	RefetchOnFocus *bool  `yaml:"refetch_on_focus"`
}

func (c *Config) loadViewsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]viewPolicyYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for name, vp := range doc {
		kind := model.Kind(name)
		p, ok := c.Views[kind]
		if !ok {
			return fmt.Errorf("unknown resource kind %q", name)
		}
		if vp.RefreshEvery != "" {
			d, err := time.ParseDuration(vp.RefreshEvery)
			if err != nil {
				return fmt.Errorf("refresh_every for %q: %w", name, err)
			}
			p.RefreshEvery = d
		}
		if vp.RefetchOnFocus != nil {
			p.RefetchOnFocus = *vp.RefetchOnFocus
		}
		c.Views[kind] = p
	}
	return nil
}
