package agents

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configDirName = "delver_cfg"

// RequiredEnv lists the credentials the CLI checks at startup: one for the
// reasoning-engine provider, one for the search provider.
var RequiredEnv = []string{"GROQ_API_KEY", "TAVILY_API_KEY"}

// MissingEnv returns the required environment variables that are unset.
func MissingEnv() []string {
	var missing []string
	for _, key := range RequiredEnv {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func apiKeyFromEnv() string {
	return os.Getenv("GROQ_API_KEY")
}

// DefaultModels is the ordered candidate list: primary first, then
// fallbacks.
var DefaultModels = []string{
	"moonshotai/kimi-k2-instruct",
	"openai/gpt-oss-120b",
}

// Config matches delver_cfg/config.yaml inside the workspace.
type Config struct {
	Version       string        `yaml:"version"`
	Models        []string      `yaml:"models"`
	Endpoint      string        `yaml:"endpoint"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	MaxIterations int           `yaml:"max_iterations"`
	OutputsDir    string        `yaml:"outputs_dir"`
	PreviewLimit  int           `yaml:"preview_limit"`
	Logging       LoggingConfig `yaml:"logging"`
}

// LoggingConfig describes debug log output.
type LoggingConfig struct {
	LLM   bool `yaml:"llm_debug"`
	Agent bool `yaml:"agent_debug"`
}

// ConfigDir returns the workspace-local configuration directory.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, configDirName)
}

// DefaultConfigPath returns delver_cfg/config.yaml within the workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "config.yaml")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:       "1.0.0",
		Models:        append([]string(nil), DefaultModels...),
		MaxTokens:     2048,
		MaxIterations: 8,
		OutputsDir:    "outputs",
		PreviewLimit:  300,
	}
}

// LoadConfig loads the config or returns defaults when missing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Models) == 0 {
		cfg.Models = append([]string(nil), DefaultModels...)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 8
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 300
	}
	if cfg.OutputsDir == "" {
		cfg.OutputsDir = "outputs"
	}
	return cfg, nil
}

// SaveConfig writes the config to disk.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
