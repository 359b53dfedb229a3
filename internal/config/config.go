// Package config handles workcell configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "workcell.toml"

// Config represents the workcell configuration.
type Config struct {
	Agent      AgentConfig      `toml:"agent"`
	LLM        LLMConfig        `toml:"llm"`
	SmallLLM   LLMConfig        `toml:"small_llm"`
	Executor   ExecutorConfig   `toml:"executor"`
	Validation ValidationConfig `toml:"validation"`
	Jail       JailConfig       `toml:"jail"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Transport  TransportConfig  `toml:"transport"`
	Server     ServerConfig     `toml:"server"`
}

// AgentConfig contains identity and storage locations.
type AgentConfig struct {
	ID         string `toml:"id"`
	Workspaces string `toml:"workspaces"` // parent of all project jails
	DataDir    string `toml:"data_dir"`   // project registry and chat history
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`
	Thinking     string `toml:"thinking"`      // auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // 0 means provider default
	RetryBackoff string `toml:"retry_backoff"` // e.g. "60s"
}

// ExecutorConfig bounds a single sub-task.
type ExecutorConfig struct {
	MaxIterations  int `toml:"max_iterations"`
	CommandTimeout int `toml:"command_timeout"` // seconds
}

// ValidationConfig controls when a step counts as completed.
type ValidationConfig struct {
	Threshold float64 `toml:"threshold"` // confidence must be strictly greater
}

// JailConfig tunes workspace confinement.
type JailConfig struct {
	PathPolicy string   `toml:"path_policy"` // clamp|reject
	Allow      []string `toml:"allow"`       // extra allowed command prefixes
	Deny       []string `toml:"deny"`        // extra blocked command patterns
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"`
	Protocol string            `toml:"protocol"` // http|otlp|file|noop
	Insecure bool              `toml:"insecure"`
	Headers  map[string]string `toml:"headers"`
}

// TransportConfig selects where progress events are published.
type TransportConfig struct {
	NATSURL string `toml:"nats_url"` // empty disables the NATS sink
	Subject string `toml:"subject"`
}

// ServerConfig contains settings for the HTTP surface.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	Tailscale  bool   `toml:"tailscale"`
	Hostname   string `toml:"hostname"`
	StateDir   string `toml:"state_dir"`
	AuthKeyEnv string `toml:"auth_key_env"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:         "workcell",
			Workspaces: "~/.local/workcell/workspaces",
			DataDir:    "~/.local/workcell/data",
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		SmallLLM: LLMConfig{
			MaxTokens: 1024,
		},
		Executor: ExecutorConfig{
			MaxIterations:  15,
			CommandTimeout: 30,
		},
		Validation: ValidationConfig{
			Threshold: 0.6,
		},
		Jail: JailConfig{
			PathPolicy: "clamp",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
		Transport: TransportConfig{
			Subject: "workcell.events",
		},
		Server: ServerConfig{
			Addr:       ":8000",
			Hostname:   "workcell",
			AuthKeyEnv: "TS_AUTHKEY",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads workcell.toml from the current directory, falling back
// to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return LoadFile(path)
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Jail.PathPolicy {
	case "clamp", "reject":
	default:
		return fmt.Errorf("invalid jail.path_policy %q (want clamp or reject)", c.Jail.PathPolicy)
	}
	if c.Validation.Threshold < 0 || c.Validation.Threshold > 1 {
		return fmt.Errorf("validation.threshold must be within [0, 1], got %v", c.Validation.Threshold)
	}
	if c.Executor.MaxIterations < 1 {
		return fmt.Errorf("executor.max_iterations must be positive, got %d", c.Executor.MaxIterations)
	}
	if c.Executor.CommandTimeout < 1 {
		return fmt.Errorf("executor.command_timeout must be positive, got %d", c.Executor.CommandTimeout)
	}
	if c.LLM.RetryBackoff != "" {
		if _, err := time.ParseDuration(c.LLM.RetryBackoff); err != nil {
			return fmt.Errorf("invalid llm.retry_backoff: %w", err)
		}
	}
	return nil
}

// CommandTimeout returns the per-command timeout.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Executor.CommandTimeout) * time.Second
}

// WorkspacesPath returns the expanded workspaces directory.
func (c *Config) WorkspacesPath() string {
	return ExpandHome(c.Agent.Workspaces)
}

// DataPath returns the expanded data directory.
func (c *Config) DataPath() string {
	return ExpandHome(c.Agent.DataDir)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	return c.LLM.APIKey()
}

// APIKey resolves the key for this LLM section from the environment.
func (l LLMConfig) APIKey() string {
	envVar := l.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(l.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// AuthKey returns the tailnet auth key from the configured environment variable.
func (c *Config) AuthKey() string {
	if c.Server.AuthKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.AuthKeyEnv)
}
