package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  url: "https://www.linkedin.com/jobs/search/?keywords=golang"
processing:
  budget: 10
  item_delay: 2s
  dispatch_retries: 0
channel:
  transport: redis
  redis_url: "redis://cache:6379/1"
store:
  driver: postgres
  dsn: "postgres://localhost/jobradar"
analysis:
  enabled: true
  model: gpt-4o-mini
  criteria: "  Remote Go roles  "
filters:
  title_keywords:
    - engineer
  exclude_locations:
    - on-site
watch:
  schedule: ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Processing.Budget != 10 || cfg.Processing.ItemDelay != 2*time.Second {
		t.Errorf("Processing = %+v", cfg.Processing)
	}
	if cfg.Processing.DispatchRetries != 0 {
		t.Errorf("DispatchRetries = %d, want explicit 0", cfg.Processing.DispatchRetries)
	}
	if cfg.Channel.Transport != "redis" || cfg.Channel.RedisURL != "redis://cache:6379/1" {
		t.Errorf("Channel = %+v", cfg.Channel)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Analysis.Criteria != "Remote Go roles" || cfg.Analysis.BaseURL != defaultOpenAIBaseURL {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if len(cfg.Filters.TitleKeywords) != 1 || cfg.Filters.TitleKeywords[0] != "engineer" {
		t.Errorf("TitleKeywords = %v", cfg.Filters.TitleKeywords)
	}
	if len(cfg.Filters.ExcludeLocations) != 1 {
		t.Errorf("ExcludeLocations = %v", cfg.Filters.ExcludeLocations)
	}
	if cfg.Watch.Schedule != "" {
		t.Errorf("Schedule = %q, want disabled", cfg.Watch.Schedule)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "site:\n  url: https://www.linkedin.com/jobs/search/\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Processing
	if p.Budget != 25 || p.ItemDelay != 1500*time.Millisecond || p.FailureThreshold != 3 ||
		p.FailureCooldown != 5*time.Second || p.DispatchRetries != 2 || p.ReplyWindow != 2*time.Second {
		t.Errorf("Processing defaults = %+v", p)
	}
	e := cfg.Extraction
	if e.DescriptionTimeout != 5*time.Second || e.PollInterval != 250*time.Millisecond || e.MaxAttempts != 3 {
		t.Errorf("Extraction defaults = %+v", e)
	}
	if cfg.Channel.Transport != "memory" || cfg.Channel.Timeout != 15*time.Second {
		t.Errorf("Channel defaults = %+v", cfg.Channel)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "jobradar.db" {
		t.Errorf("Store defaults = %+v", cfg.Store)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless should default to true")
	}
	if cfg.Notification.Type != "log" || cfg.Watch.Schedule != "@every 30m" || cfg.Watch.QuietPeriod != 1500*time.Millisecond {
		t.Errorf("Notification/Watch defaults = %+v %+v", cfg.Notification, cfg.Watch)
	}
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `site:
  url: https://x.test
processing:
  failure_threshold: 0
  dispatch_retries: 0
  max_pages: 0
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Processing
	if p.FailureThreshold != 0 || p.DispatchRetries != 0 || p.MaxPages != 0 {
		t.Errorf("Processing = %+v, want explicit zeros kept", p)
	}
	if p.Budget != 25 {
		t.Errorf("Budget = %d, want default 25 when absent", p.Budget)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "site: [broken")); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing url", "processing:\n  budget: 3\n", "site.url"},
		{"bad duration", "site:\n  url: https://x.test\nprocessing:\n  item_delay: soon\n", "processing.item_delay"},
		{"negative budget", "site:\n  url: https://x.test\nprocessing:\n  budget: -1\n", "processing.budget"},
		{"zero budget", "site:\n  url: https://x.test\nprocessing:\n  budget: 0\n", "processing.budget"},
		{"zero extraction attempts", "site:\n  url: https://x.test\nextraction:\n  max_attempts: 0\n", "extraction.max_attempts"},
		{"unknown transport", "site:\n  url: https://x.test\nchannel:\n  transport: carrier-pigeon\n", "channel.transport"},
		{"redis store without dsn", "site:\n  url: https://x.test\nstore:\n  driver: redis\n", "store.dsn"},
		{"slack without webhook", "site:\n  url: https://x.test\nnotification:\n  type: slack\n", "webhook_url"},
		{"slack bad webhook", "site:\n  url: https://x.test\nnotification:\n  type: slack\n  webhook_url: https://example.com\n", "hooks.slack.com"},
		{"analysis without model", "site:\n  url: https://x.test\nanalysis:\n  enabled: true\n", "analysis.model"},
		{"bad scheme", "site:\n  url: ftp://x.test\n", "scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ExpandsEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBRADAR_TEST_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	content := "site:\n  url: https://x.test\nanalysis:\n  api_key: \"${JOBRADAR_TEST_KEY}\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("JOBRADAR_TEST_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Analysis.APIKey)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/jobradar.yaml")
	if got := ResolvePath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("ResolvePath(flag) = %q", got)
	}
	if got := ResolvePath(""); got != "/etc/jobradar.yaml" {
		t.Errorf("ResolvePath(env) = %q", got)
	}
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != "config.yaml" {
		t.Errorf("ResolvePath(default) = %q", got)
	}
}

func TestLoadResume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(path, []byte("\n  Ten years of Go.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	text, err := LoadResume(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Ten years of Go." {
		t.Errorf("LoadResume = %q", text)
	}
	if text, err := LoadResume(""); err != nil || text != "" {
		t.Errorf("LoadResume(\"\") = %q, %v", text, err)
	}
	if _, err := LoadResume(filepath.Join(dir, "resume.png")); err == nil {
		t.Error("expected error for unsupported type")
	}
}
