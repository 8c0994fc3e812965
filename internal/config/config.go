// Package config loads gateway configuration from config.yaml with
// environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Providers   ProvidersConfig   `koanf:"providers"`
	ElevenLabs  ElevenLabsConfig  `koanf:"elevenlabs"`
	Geolocation GeolocationConfig `koanf:"geolocation"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ProvidersConfig struct {
	Groq       GroqConfig       `koanf:"groq"`
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
	Manual     ManualConfig     `koanf:"manual"`
}

type GroqConfig struct {
	APIKey      string `koanf:"api_key"`
	BaseURL     string `koanf:"base_url"`
	TextModel   string `koanf:"text_model"`
	VisionModel string `koanf:"vision_model"`
}

type OpenRouterConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type ManualConfig struct {
	URL string `koanf:"url"`
}

type ElevenLabsConfig struct {
	// APIKeys is a comma-separated ordered key pool.
	APIKeys string `koanf:"api_keys"`
	BaseURL string `koanf:"base_url"`
}

// Keys returns the parsed key pool, empty entries dropped.
func (c ElevenLabsConfig) Keys() []string {
	var keys []string
	for _, key := range strings.Split(c.APIKeys, ",") {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

type GeolocationConfig struct {
	APIKey string `koanf:"api_key"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml (when present) and applies LEDGERLENS_-prefixed
// environment overrides; double underscores map to nesting, so
// LEDGERLENS_PROVIDERS__GROQ__API_KEY sets providers.groq.api_key.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("LEDGERLENS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LEDGERLENS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/ledgerlens.db")
	}
	if !k.Exists("providers.manual.url") {
		k.Set("providers.manual.url", "http://localhost:8000/api/parse")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references so secrets can live in the environment
	// while the shape lives in the file.
	cfg.Providers.Groq.APIKey = substituteEnvVars(cfg.Providers.Groq.APIKey)
	cfg.Providers.OpenRouter.APIKey = substituteEnvVars(cfg.Providers.OpenRouter.APIKey)
	cfg.ElevenLabs.APIKeys = substituteEnvVars(cfg.ElevenLabs.APIKeys)
	cfg.Geolocation.APIKey = substituteEnvVars(cfg.Geolocation.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
