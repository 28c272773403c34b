package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Search.APIKey = "sk"
	cfg.Search.BaseURL = "https://search.example.com"
	cfg.Model.APIKey = "mk"
	cfg.Model.BaseURL = "https://model.example.com"
	cfg.Workspace.Path = "/tmp"
	return cfg
}

func TestValidateOK(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"search key", func(c *Config) { c.Search.APIKey = "" }, "search.apiKey"},
		{"search url", func(c *Config) { c.Search.BaseURL = "" }, "search.baseUrl"},
		{"model key", func(c *Config) { c.Model.APIKey = "" }, "model.apiKey"},
		{"model url", func(c *Config) { c.Model.BaseURL = "" }, "model.baseUrl"},
		{"workspace", func(c *Config) { c.Workspace.Path = "" }, "workspace.path"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)

		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}

		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected *ConfigError, got %T", tc.name, err)
		}
		if cfgErr.Field != tc.field {
			t.Fatalf("%s: expected field %s, got %s", tc.name, tc.field, cfgErr.Field)
		}
	}
}

func TestValidateAttachPolicy(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Mail.AttachTo = "second-only"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown attach policy")
	}

	for _, policy := range []string{"", "all", "first-only"} {
		cfg.Mail.AttachTo = policy
		if err := cfg.Validate(); err != nil {
			t.Fatalf("policy %q: unexpected error %v", policy, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(searchAPIKeyEnv, "env-key")
	t.Setenv(databaseDSNEnv, "postgres://env")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Search.APIKey != "env-key" {
		t.Fatalf("expected env override for search key, got %q", cfg.Search.APIKey)
	}
	if cfg.Database.DSN != "postgres://env" {
		t.Fatalf("expected env override for dsn, got %q", cfg.Database.DSN)
	}
}

func TestDefaultsCarryLoopAndBatches(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if cfg.Loop.Cooldown() != 30*time.Second {
		t.Fatalf("unexpected default cooldown: %v", cfg.Loop.Cooldown())
	}
	if len(cfg.Batches) != 3 {
		t.Fatalf("expected 3 default batches, got %d", len(cfg.Batches))
	}
	for i, b := range cfg.Batches {
		if len(b.Sites) == 0 || len(b.Sites) > 5 {
			t.Fatalf("batch %d has invalid site partition of %d domains", i, len(b.Sites))
		}
	}
}

func TestMergeConfigOverridesSelectively(t *testing.T) {
	t.Parallel()

	base := defaultConfig()
	override := Config{}
	override.Loop.TargetCount = 25
	override.Mail.AttachTo = "all"

	merged := mergeConfig(base, override)
	if merged.Loop.TargetCount != 25 {
		t.Fatalf("expected merged target 25, got %d", merged.Loop.TargetCount)
	}
	if merged.Loop.MaxSearches != base.Loop.MaxSearches {
		t.Fatalf("max searches should keep base value")
	}
	if merged.Mail.AttachTo != "all" {
		t.Fatalf("expected merged attach policy all, got %s", merged.Mail.AttachTo)
	}
}
