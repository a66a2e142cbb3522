package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"propdesk/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIBaseURL != productionAPIURL {
		t.Fatalf("base url: %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.StaleAfter != 10*time.Second {
		t.Fatalf("stale window: %v", cfg.StaleAfter)
	}
	if cfg.EvictAfter != 5*time.Minute {
		t.Fatalf("evict grace: %v", cfg.EvictAfter)
	}
	if cfg.SearchDebounce != 500*time.Millisecond {
		t.Fatalf("search debounce: %v", cfg.SearchDebounce)
	}
	if cfg.ClientPageSize != 100 {
		t.Fatalf("page size: %d", cfg.ClientPageSize)
	}

	props := cfg.Views[model.KindProperties]
	if props.RefreshEvery != 30*time.Second || props.RefetchOnFocus {
		t.Fatalf("properties policy: %+v", props)
	}
	clients := cfg.Views[model.KindClients]
	if clients.RefreshEvery != 5*time.Second || !clients.RefetchOnFocus {
		t.Fatalf("clients policy: %+v", clients)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROPDESK_ENV", "local")
	t.Setenv("PROPDESK_REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("PROPDESK_CLIENT_PAGE_SIZE", "25")
	t.Setenv("PROPDESK_LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.APIBaseURL != localAPIURL {
		t.Fatalf("local env must target the local api, got %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.ClientPageSize != 25 {
		t.Fatalf("page size: %d", cfg.ClientPageSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %q", cfg.LogLevel)
	}
}

func TestLoadExplicitURLWinsOverEnvironment(t *testing.T) {
	t.Setenv("PROPDESK_ENV", "local")
	t.Setenv("PROPDESK_API_URL", "http://staging.internal:8080/api")
	cfg := Load()
	if cfg.APIBaseURL != "http://staging.internal:8080/api" {
		t.Fatalf("explicit url must win, got %q", cfg.APIBaseURL)
	}
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("PROPDESK_REQUEST_TIMEOUT_MS", "soon")
	t.Setenv("PROPDESK_CLIENT_PAGE_SIZE", "many")
	cfg := Load()
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("malformed timeout must default: %v", cfg.RequestTimeout)
	}
	if cfg.ClientPageSize != 100 {
		t.Fatalf("malformed page size must default: %d", cfg.ClientPageSize)
	}
}

func TestLoadViewsFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	doc := "properties:\n  refresh_every: 1m\n  refetch_on_focus: true\nclients:\n  refresh_every: 10s\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write views file: %v", err)
	}
	t.Setenv("PROPDESK_VIEWS_FILE", path)

	cfg := Load()
	props := cfg.Views[model.KindProperties]
	if props.RefreshEvery != time.Minute || !props.RefetchOnFocus {
		t.Fatalf("properties overlay: %+v", props)
	}
	clients := cfg.Views[model.KindClients]
	if clients.RefreshEvery != 10*time.Second || !clients.RefetchOnFocus {
		t.Fatalf("clients overlay must keep default focus flag: %+v", clients)
	}
}

func TestLoadBadViewsFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	if err := os.WriteFile(path, []byte("visits:\n  refresh_every: 1m\n"), 0o600); err != nil {
		t.Fatalf("write views file: %v", err)
	}
	t.Setenv("PROPDESK_VIEWS_FILE", path)

	cfg := Load()
	props := cfg.Views[model.KindProperties]
	if props.RefreshEvery != 30*time.Second || props.RefetchOnFocus {
		t.Fatalf("bad file must keep defaults: %+v", props)
	}
}

func TestLoadUnparsableDurationRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	if err := os.WriteFile(path, []byte("clients:\n  refresh_every: sometimes\n"), 0o600); err != nil {
		t.Fatalf("write views file: %v", err)
	}
	t.Setenv("PROPDESK_VIEWS_FILE", path)

	cfg := Load()
	clients := cfg.Views[model.KindClients]
	if clients.RefreshEvery != 5*time.Second {
		t.Fatalf("unparsable duration must keep default: %+v", clients)
	}
}
