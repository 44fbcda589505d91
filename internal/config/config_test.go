package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("BULK_CONCURRENCY", "zero")
	t.Setenv("SUMMARY_CACHE_TTL_SECONDS", "-4")
	t.Setenv("AUTO_MIGRATE", "nope")

	cfg := Load()
	if cfg.BulkConcurrency != 8 {
		t.Fatalf("expected default bulk concurrency, got %d", cfg.BulkConcurrency)
	}
	if cfg.SummaryCacheTTLSeconds != 300 {
		t.Fatalf("expected default cache ttl, got %d", cfg.SummaryCacheTTLSeconds)
	}
	if !cfg.AutoMigrate {
		t.Fatalf("expected AUTO_MIGRATE to default to true")
	}
}

func TestMediaBaseURLDropsTrailingSlash(t *testing.T) {
	t.Setenv("MEDIA_BASE_URL", "https://cdn.example.com/media/")

	cfg := Load()
	if cfg.MediaBaseURL != "https://cdn.example.com/media" {
		t.Fatalf("unexpected media base url %q", cfg.MediaBaseURL)
	}
}
