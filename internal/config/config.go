package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "ORCHESTRATOR_CONFIG"
	httpAddrEnv        = "HTTP_ADDR"
	logLevelEnv        = "LOG_LEVEL"
	logFormatEnv       = "LOG_FORMAT"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	modelProviderEnv   = "MODEL_PROVIDER"
	modelNameEnv       = "MODEL_NAME"
	anthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	googleAPIKeyEnv    = "GOOGLE_API_KEY"
	supabaseURLEnv     = "SUPABASE_URL"
	supabaseKeyEnv     = "SUPABASE_SERVICE_ROLE_KEY"
	docsPrivateEnv     = "DOCS_PRIVATE_BUCKET"
	samAPIKeyEnv       = "SAM_API_KEY"
	syncEnabledEnv     = "SYNC_ENABLED"
)

// Model providers understood by the gateway factory.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

// ShutdownGrace parses ShutdownTimeout, falling back to 10s.
func (s ServerConfig) ShutdownGrace() time.Duration {
	return parseDuration(s.ShutdownTimeout, 10*time.Second)
}

// DatabaseConfig selects the SQL driver ("postgres" or "sqlite") and DSN.
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// ModelConfig defines how to contact the inference backend.
type ModelConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	MaxTokens      int    `yaml:"maxTokens"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// StorageConfig points at the Supabase-compatible document store.
type StorageConfig struct {
	URL           string `yaml:"url"`
	ServiceKey    string `yaml:"serviceKey"`
	Bucket        string `yaml:"bucket"`
	Private       bool   `yaml:"private"`
	SignedURLTTL  int    `yaml:"signedUrlTtlSeconds"`
	FetchTimeout  int    `yaml:"fetchTimeoutSeconds"`
	MaxFetchBytes int64  `yaml:"maxFetchBytes"`
}

// CatalogConfig describes the SAM.gov opportunities API.
type CatalogConfig struct {
	BaseURL           string  `yaml:"baseUrl"`
	APIKey            string  `yaml:"apiKey"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds"`
}

// SyncConfig defines the periodic catalog sync.
type SyncConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Keywords string `yaml:"keywords"`
	NAICS    string `yaml:"naics"`
	State    string `yaml:"state"`
	Limit    int    `yaml:"limit"`
}

// Every parses Interval, falling back to 24h.
func (s SyncConfig) Every() time.Duration {
	return parseDuration(s.Interval, 24*time.Hour)
}

// LoggingConfig sets the slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env files, YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	loadDotEnv(".env", ".env.local")

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.Model.applyProviderDefaults()
	return cfg
}

// loadDotEnv copies values from dotenv files into the process environment
// without overriding variables that are already set.
func loadDotEnv(names ...string) {
	for _, name := range names {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, v)
			}
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(modelProviderEnv); v != "" {
		c.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(modelNameEnv); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv(providerKeyEnv(c.Model.Provider)); v != "" {
		c.Model.APIKey = v
	}

	if v := os.Getenv(supabaseURLEnv); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv(supabaseKeyEnv); v != "" {
		c.Storage.ServiceKey = v
	}
	if v, ok := os.LookupEnv(docsPrivateEnv); ok {
		c.Storage.Private = parseBool(v, c.Storage.Private)
	}

	if v := os.Getenv(samAPIKeyEnv); v != "" {
		c.Catalog.APIKey = v
	}
	if v, ok := os.LookupEnv(syncEnabledEnv); ok {
		c.Sync.Enabled = parseBool(v, c.Sync.Enabled)
	}
}

func providerKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return openAIAPIKeyEnv
	case ProviderGemini:
		return googleAPIKeyEnv
	default:
		return anthropicAPIKeyEnv
	}
}

// applyProviderDefaults fills endpoint and model the configuration left empty.
func (m *ModelConfig) applyProviderDefaults() {
	def, ok := providerDefaults[m.Provider]
	if !ok {
		return
	}
	if m.Endpoint == "" {
		m.Endpoint = def.Endpoint
	}
	if m.Model == "" {
		m.Model = def.Model
	}
}

var providerDefaults = map[string]ModelConfig{
	ProviderAnthropic: {Model: "claude-sonnet-4-5"},
	ProviderOpenAI:    {Endpoint: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o-mini"},
	ProviderGemini:    {Endpoint: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions", Model: "gemini-2.5-flash"},
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ShutdownTimeout != "" {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Migrate {
		base.Database.Migrate = true
	}

	if override.Model.Provider != "" {
		base.Model.Provider = strings.ToLower(override.Model.Provider)
	}
	if override.Model.Endpoint != "" {
		base.Model.Endpoint = override.Model.Endpoint
	}
	if override.Model.Model != "" {
		base.Model.Model = override.Model.Model
	}
	if override.Model.APIKey != "" {
		base.Model.APIKey = override.Model.APIKey
	}
	if override.Model.MaxTokens > 0 {
		base.Model.MaxTokens = override.Model.MaxTokens
	}
	if override.Model.TimeoutSeconds > 0 {
		base.Model.TimeoutSeconds = override.Model.TimeoutSeconds
	}

	if override.Storage.URL != "" {
		base.Storage.URL = override.Storage.URL
	}
	if override.Storage.ServiceKey != "" {
		base.Storage.ServiceKey = override.Storage.ServiceKey
	}
	if override.Storage.Bucket != "" {
		base.Storage.Bucket = override.Storage.Bucket
	}
	if override.Storage.Private {
		base.Storage.Private = true
	}
	if override.Storage.SignedURLTTL > 0 {
		base.Storage.SignedURLTTL = override.Storage.SignedURLTTL
	}
	if override.Storage.FetchTimeout > 0 {
		base.Storage.FetchTimeout = override.Storage.FetchTimeout
	}
	if override.Storage.MaxFetchBytes > 0 {
		base.Storage.MaxFetchBytes = override.Storage.MaxFetchBytes
	}

	if override.Catalog.BaseURL != "" {
		base.Catalog.BaseURL = override.Catalog.BaseURL
	}
	if override.Catalog.APIKey != "" {
		base.Catalog.APIKey = override.Catalog.APIKey
	}
	if override.Catalog.RequestsPerSecond > 0 {
		base.Catalog.RequestsPerSecond = override.Catalog.RequestsPerSecond
	}
	if override.Catalog.Burst > 0 {
		base.Catalog.Burst = override.Catalog.Burst
	}
	if override.Catalog.TimeoutSeconds > 0 {
		base.Catalog.TimeoutSeconds = override.Catalog.TimeoutSeconds
	}

	if override.Sync.Enabled {
		base.Sync.Enabled = true
	}
	if override.Sync.Interval != "" {
		base.Sync.Interval = override.Sync.Interval
	}
	if override.Sync.Keywords != "" {
		base.Sync.Keywords = override.Sync.Keywords
	}
	if override.Sync.NAICS != "" {
		base.Sync.NAICS = override.Sync.NAICS
	}
	if override.Sync.State != "" {
		base.Sync.State = override.Sync.State
	}
	if override.Sync.Limit > 0 {
		base.Sync.Limit = override.Sync.Limit
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: "10s"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:orchestrator.db?_pragma=busy_timeout(5000)", Migrate: true},
		Model: ModelConfig{
			Provider:       ProviderAnthropic,
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{
			Bucket:        "contract_docs",
			SignedURLTTL:  3600,
			FetchTimeout:  60,
			MaxFetchBytes: 25 << 20,
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://api.sam.gov/opportunities/v2/search",
			RequestsPerSecond: 1,
			Burst:             1,
			TimeoutSeconds:    30,
		},
		Sync:    SyncConfig{Interval: "24h", Limit: 50},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}
