// Package config loads Arcana's settings from a YAML file, ARCANA_*
// environment variables and the legacy provider variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ARCANA_SERVER_ADDR
const EnvPrefix = "ARCANA"

// Config holds the resolved settings
type Config struct {
	ServerAddr     string
	StaticDir      string
	DatabasePath   string
	UploadMaxBytes int64

	Provider    string
	Model       string
	Temperature float64

	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaURL     string

	GoogleBooksAPIKey     string
	GoogleBooksEndpoint   string
	GoogleBooksMaxResults int

	ScanConcurrency  int
	Owners           []models.Owner
	ReadingCardModel string

	LogLevel  string
	LogFormat string
}

// legacyEnv are the variable names the service used before the ARCANA_ prefix
var legacyEnv = map[string]string{
	"gemini.api_key":      "GEMINI_API_KEY",
	"openai.api_key":      "OPENAI_API_KEY",
	"ollama.url":          "OLLAMA_URL",
	"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8888")
	v.SetDefault("static.dir", "")
	v.SetDefault("database.path", "arcana.db")
	v.SetDefault("upload.max_bytes", 5<<20)
	v.SetDefault("recognition.provider", "gemini")
	v.SetDefault("recognition.model", "")
	v.SetDefault("recognition.temperature", 0.1)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("googlebooks.endpoint", "")
	v.SetDefault("googlebooks.max_results", 10)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("household.owners", []string{})
	v.SetDefault("readingcard.model", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

// NewViper returns a viper instance reading cfgFile, or arcana.yaml from the
// working directory or ~/.config/arcana when cfgFile is empty. A missing
// default config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("arcana")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "arcana"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load resolves a Config from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServerAddr:            v.GetString("server.addr"),
		StaticDir:             v.GetString("static.dir"),
		DatabasePath:          v.GetString("database.path"),
		UploadMaxBytes:        v.GetInt64("upload.max_bytes"),
		Provider:              strings.ToLower(strings.TrimSpace(v.GetString("recognition.provider"))),
		Model:                 v.GetString("recognition.model"),
		Temperature:           v.GetFloat64("recognition.temperature"),
		GeminiAPIKey:          v.GetString("gemini.api_key"),
		OpenAIAPIKey:          v.GetString("openai.api_key"),
		OpenAIBaseURL:         v.GetString("openai.base_url"),
		OllamaURL:             v.GetString("ollama.url"),
		GoogleBooksAPIKey:     v.GetString("googlebooks.api_key"),
		GoogleBooksEndpoint:   v.GetString("googlebooks.endpoint"),
		GoogleBooksMaxResults: v.GetInt("googlebooks.max_results"),
		ScanConcurrency:       v.GetInt("scan.concurrency"),
		ReadingCardModel:      v.GetString("readingcard.model"),
		LogLevel:              v.GetString("log.level"),
		LogFormat:             v.GetString("log.format"),
	}
	for _, name := range v.GetStringSlice("household.owners") {
		owner := models.Owner(strings.ToUpper(strings.TrimSpace(name)))
		if owner == "" || owner == models.OwnerFamily {
			continue
		}
		cfg.Owners = append(cfg.Owners, owner)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command relies on
func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("recognition.provider must be gemini, openai or ollama, got %q", c.Provider)
	}
	if c.DatabasePath == "" {
		return errors.New("database.path is required")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("recognition.temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.GoogleBooksMaxResults < 1 || c.GoogleBooksMaxResults > 40 {
		return fmt.Errorf("googlebooks.max_results must be between 1 and 40, got %d", c.GoogleBooksMaxResults)
	}
	if c.ScanConcurrency < 1 {
		return errors.New("scan.concurrency must be at least 1")
	}
	return nil
}

// RequireProviderCredentials reports a missing API key for the configured
// recognition provider. Only commands that call the LLM need it.
func (c *Config) RequireProviderCredentials() error {
	switch c.Provider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY (gemini.api_key) is required for the gemini provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY (openai.api_key) is required for the openai provider")
		}
	}
	return nil
}

// HouseholdOwners lists the valid owners, FAMILY first
func (c *Config) HouseholdOwners() []models.Owner {
	return append([]models.Owner{models.OwnerFamily}, c.Owners...)
}
