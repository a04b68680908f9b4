package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Categories []string   `yaml:"categories"`
	Generation Generation `yaml:"generation"`
	Rewrite    Rewrite    `yaml:"rewrite"`
	Images     Images     `yaml:"images"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type Generation struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	GeminiModel string `yaml:"gemini_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Rewrite struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxAttempts         int     `yaml:"max_attempts"`
	AvoidPhrases        int     `yaml:"avoid_phrases"`
	MinWords            int     `yaml:"min_words"`
	MaxWords            int     `yaml:"max_words"`
	ExpandRetries       int     `yaml:"expand_retries"`
	Strict              bool    `yaml:"strict"`
}

type Images struct {
	MinStrongMatches int    `yaml:"min_strong_matches"`
	CandidateLimit   int    `yaml:"candidate_limit"`
	FallbackPublicID string `yaml:"fallback_public_id"`
	FallbackURL      string `yaml:"fallback_url"`
}

type Pipeline struct {
	BatchSize int `yaml:"batch_size"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsmint.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsmint")
}

// DataDir returns the XDG data directory for newsmint.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsmint")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsmint/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsmint init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Categories: []string{"General", "World", "Politics", "Business", "Sports", "Technology", "Entertainment"},
		Generation: Generation{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			GeminiModel: "gemini-1.5-flash",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   2048,
		},
		Rewrite: Rewrite{
			SimilarityThreshold: 0.25,
			MaxAttempts:         3,
			AvoidPhrases:        8,
			MinWords:            450,
			MaxWords:            1200,
			ExpandRetries:       2,
		},
		Images: Images{
			MinStrongMatches: 1,
			CandidateLimit:   200,
			FallbackPublicID: "defaults/newsroom",
		},
		Pipeline: Pipeline{BatchSize: 25},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Rewrite.MaxWords > 0 && cfg.Rewrite.MaxWords < cfg.Rewrite.MinWords {
		return nil, fmt.Errorf("rewrite word band invalid: max_words %d < min_words %d",
			cfg.Rewrite.MaxWords, cfg.Rewrite.MinWords)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// HasCategory reports whether name is one of the configured categories.
func (c *Config) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
