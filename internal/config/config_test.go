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
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Executor.MaxIterations != 15 {
		t.Errorf("expected 15 iterations, got %d", cfg.Executor.MaxIterations)
	}
	if cfg.CommandTimeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.CommandTimeout())
	}
	if cfg.Validation.Threshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.Validation.Threshold)
	}
	if cfg.Jail.PathPolicy != "clamp" {
		t.Errorf("expected clamp, got %s", cfg.Jail.PathPolicy)
	}
	if cfg.Telemetry.Protocol != "noop" {
		t.Errorf("expected noop telemetry, got %s", cfg.Telemetry.Protocol)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[agent]
workspaces = "/srv/ws"

[llm]
provider = "anthropic"
model = "claude-sonnet"
max_retries = 3
retry_backoff = "30s"

[small_llm]
model = "claude-haiku"

[executor]
max_iterations = 5

[validation]
threshold = 0.8

[jail]
path_policy = "reject"
allow = ["make"]
deny = ["curl"]

[transport]
nats_url = "nats://localhost:4222"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Agent.Workspaces != "/srv/ws" || cfg.WorkspacesPath() != "/srv/ws" {
		t.Errorf("unexpected workspaces: %s", cfg.Agent.Workspaces)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.MaxRetries != 3 {
		t.Errorf("unexpected llm: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("default max_tokens lost: %d", cfg.LLM.MaxTokens)
	}
	if cfg.SmallLLM.Model != "claude-haiku" {
		t.Errorf("unexpected small llm: %+v", cfg.SmallLLM)
	}
	if cfg.Executor.MaxIterations != 5 || cfg.Executor.CommandTimeout != 30 {
		t.Errorf("unexpected executor: %+v", cfg.Executor)
	}
	if cfg.Validation.Threshold != 0.8 {
		t.Errorf("unexpected threshold: %v", cfg.Validation.Threshold)
	}
	if cfg.Jail.PathPolicy != "reject" || len(cfg.Jail.Allow) != 1 || cfg.Jail.Deny[0] != "curl" {
		t.Errorf("unexpected jail: %+v", cfg.Jail)
	}
	if cfg.Transport.NATSURL != "nats://localhost:4222" || cfg.Transport.Subject != "workcell.events" {
		t.Errorf("unexpected transport: %+v", cfg.Transport)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[llm\nmodel=", "failed to parse config"},
		{"policy", "[jail]\npath_policy = \"ignore\"", "path_policy"},
		{"threshold", "[validation]\nthreshold = 1.5", "threshold"},
		{"iterations", "[executor]\nmax_iterations = 0", "max_iterations"},
		{"timeout", "[executor]\ncommand_timeout = -1", "command_timeout"},
		{"backoff", "[llm]\nretry_backoff = \"soon\"", "retry_backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadDefault_MissingFile(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	defer os.Chdir(orig)
	os.Chdir(dir)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.Executor.MaxIterations != 15 {
		t.Error("expected defaults when workcell.toml is absent")
	}

	os.WriteFile(filepath.Join(dir, FileName), []byte("[validation]\nthreshold = 0.9\n"), 0644)
	cfg, err = LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.Validation.Threshold != 0.9 {
		t.Errorf("expected 0.9, got %v", cfg.Validation.Threshold)
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-default")
	t.Setenv("CUSTOM_KEY", "sk-custom")

	cfg := New()
	cfg.LLM.Provider = "anthropic"
	if got := cfg.GetAPIKey(); got != "sk-default" {
		t.Errorf("expected provider default key, got %q", got)
	}

	cfg.LLM.APIKeyEnv = "CUSTOM_KEY"
	if got := cfg.GetAPIKey(); got != "sk-custom" {
		t.Errorf("expected custom key, got %q", got)
	}

	cfg.LLM = LLMConfig{Provider: "unknown"}
	if got := cfg.GetAPIKey(); got != "" {
		t.Errorf("expected no key, got %q", got)
	}
}

func TestDefaultAPIKeyEnv(t *testing.T) {
	tests := map[string]string{
		"anthropic":  "ANTHROPIC_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
		"ollama":     "",
	}
	for provider, want := range tests {
		if got := DefaultAPIKeyEnv(provider); got != want {
			t.Errorf("DefaultAPIKeyEnv(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/ws"); got != filepath.Join(home, "ws") {
		t.Errorf("unexpected expansion: %s", got)
	}
	if got := ExpandHome("/abs/~/ws"); got != "/abs/~/ws" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := ExpandHome("~user/ws"); got != "~user/ws" {
		t.Errorf("~user should be left alone: %s", got)
	}
}

func TestAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "tskey-abc")
	cfg := New()
	if cfg.AuthKey() != "tskey-abc" {
		t.Errorf("unexpected auth key: %q", cfg.AuthKey())
	}
	cfg.Server.AuthKeyEnv = ""
	if cfg.AuthKey() != "" {
		t.Error("expected empty auth key")
	}
}
