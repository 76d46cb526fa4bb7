package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/MimeLyc/torznab-title-mapper/pkg/icron"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

// Config holds all application configuration.
// Values come from defaults, then an optional TOML file, then a .env file,
// then the process environment, then Options.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :3000, PORT is honored as :$PORT)
//
// Catalog (Sonarr v3):
// - SONARR_API_URL: API base url (default: http://sonarr:8989/api/v3)
// - SONARR_API_KEY: API key (required)
// - SONARR_TIMEOUT: request timeout in seconds (default: 30)
//
// Indexer (Torznab):
// - INDEXER_URL: Torznab api url (default: the Jackett torrentsir indexer)
// - INDEXER_TIMEOUT: request timeout in seconds (default: 60)
//
// Mappings:
// - MAPPING_STORE: json or sqlite (default: json)
// - MAPPING_FILE: JSON mapping file (default: $DATA_DIR/title_mappings.json)
// - RECONCILE_CRON: reconcile schedule, empty disables (default: 0 0 * * *)
//
// System:
// - DATA_DIR: data directory (default: /app/data)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_DIR: access log directory (default: $DATA_DIR/logs)
// - CONFIG_FILE: TOML file read before the environment (optional)
type Config struct {
	HTTP      HTTPConfig      `toml:"http" json:"http"`
	Catalog   CatalogConfig   `toml:"catalog" json:"catalog"`
	Indexer   IndexerConfig   `toml:"indexer" json:"indexer"`
	Mapping   MappingConfig   `toml:"mapping" json:"mapping"`
	Reconcile ReconcileConfig `toml:"reconcile" json:"reconcile"`
	System    SystemConfig    `toml:"system" json:"system"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

type CatalogConfig struct {
	APIURL  string `toml:"api_url" json:"api_url"`
	APIKey  string `toml:"api_key" json:"-"`
	Timeout int    `toml:"timeout" json:"timeout"`
}

type IndexerConfig struct {
	URL     string `toml:"url" json:"url"`
	Timeout int    `toml:"timeout" json:"timeout"`
}

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

type MappingConfig struct {
	Store string `toml:"store" json:"store"`
	File  string `toml:"file" json:"file"`
}

type ReconcileConfig struct {
	// CronExpr is a standard five-field expression; empty disables scheduling.
	CronExpr string `toml:"cron" json:"cron"`
}

type SystemConfig struct {
	DataDir  string `toml:"data_dir" json:"data_dir"`
	LogLevel string `toml:"log_level" json:"log_level"`
	LogDir   string `toml:"log_dir" json:"log_dir"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithCatalogAPIKey(key string) Option {
	return func(c *Config) {
		c.Catalog.APIKey = key
	}
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) {
		c.HTTP.Addr = addr
	}
}

func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.System.DataDir = dir
	}
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr: ":3000",
		},
		Catalog: CatalogConfig{
			APIURL:  "http://sonarr:8989/api/v3",
			Timeout: 30,
		},
		Indexer: IndexerConfig{
			URL:     "http://jackett:9117/api/v2.0/indexers/torrentsir/results/torznab/api",
			Timeout: 60,
		},
		Mapping: MappingConfig{
			Store: StoreJSON,
		},
		Reconcile: ReconcileConfig{
			CronExpr: "0 0 * * *",
		},
		System: SystemConfig{
			DataDir:  "/app/data",
			LogLevel: "info",
		},
	}
}

// New loads configuration. configPath may be empty, in which case
// CONFIG_FILE is consulted.
func New(configPath string, opts ...Option) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to read .env: %v", err)
	}

	cfg.applyEnv()

	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: %s", cfg.String())
	return &cfg, nil
}

// NewFromEnv loads configuration without a TOML file.
func NewFromEnv(opts ...Option) (*Config, error) {
	return New("", opts...)
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("Config file not found: %s", path)
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)

	c.Catalog.APIURL = getEnvString("SONARR_API_URL", c.Catalog.APIURL)
	c.Catalog.APIKey = getEnvString("SONARR_API_KEY", c.Catalog.APIKey)
	c.Catalog.Timeout = getEnvInt("SONARR_TIMEOUT", c.Catalog.Timeout)

	c.Indexer.URL = getEnvString("INDEXER_URL", c.Indexer.URL)
	c.Indexer.Timeout = getEnvInt("INDEXER_TIMEOUT", c.Indexer.Timeout)

	c.Mapping.Store = getEnvString("MAPPING_STORE", c.Mapping.Store)
	c.Mapping.File = getEnvString("MAPPING_FILE", c.Mapping.File)
	c.Reconcile.CronExpr = getEnvOptional("RECONCILE_CRON", c.Reconcile.CronExpr)

	c.System.DataDir = getEnvString("DATA_DIR", c.System.DataDir)
	c.System.LogLevel = getEnvString("LOG_LEVEL", c.System.LogLevel)
	c.System.LogDir = getEnvString("LOG_DIR", c.System.LogDir)
}

func (c *Config) normalize() {
	c.Mapping.Store = strings.ToLower(strings.TrimSpace(c.Mapping.Store))
	c.Reconcile.CronExpr = strings.TrimSpace(c.Reconcile.CronExpr)
	if strings.TrimSpace(c.System.DataDir) == "" {
		c.System.DataDir = Default().System.DataDir
	}
	if c.Mapping.File == "" {
		c.Mapping.File = filepath.Join(c.System.DataDir, "title_mappings.json")
	}
	if c.System.LogDir == "" {
		c.System.LogDir = filepath.Join(c.System.DataDir, "logs")
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Catalog.APIKey) == "" {
		return fmt.Errorf("SONARR_API_KEY is required")
	}
	if strings.TrimSpace(c.Catalog.APIURL) == "" {
		return fmt.Errorf("SONARR_API_URL is required")
	}
	if strings.TrimSpace(c.Indexer.URL) == "" {
		return fmt.Errorf("INDEXER_URL is required")
	}
	if c.Catalog.Timeout <= 0 || c.Indexer.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	switch c.Mapping.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("MAPPING_STORE must be %q or %q, got %q", StoreJSON, StoreSQLite, c.Mapping.Store)
	}
	if c.Reconcile.CronExpr != "" {
		if _, err := icron.Parse(c.Reconcile.CronExpr); err != nil {
			return fmt.Errorf("invalid RECONCILE_CRON: %w", err)
		}
	}
	return nil
}

// DBPath is the SQLite database used when MAPPING_STORE=sqlite.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "mappings.db")
}

// AccessLogPath is where HTTP requests are logged.
func (c *Config) AccessLogPath() string {
	return filepath.Join(c.System.LogDir, "proxy.log")
}

func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.Timeout) * time.Second
}

func (c *Config) IndexerTimeout() time.Duration {
	return time.Duration(c.Indexer.Timeout) * time.Second
}

// String renders the config with the API key masked.
func (c Config) String() string {
	masked := c
	if masked.Catalog.APIKey != "" {
		masked.Catalog.APIKey = "***"
	}
	return fmt.Sprintf("%+v", struct {
		HTTP      HTTPConfig
		Catalog   CatalogConfig
		Indexer   IndexerConfig
		Mapping   MappingConfig
		Reconcile ReconcileConfig
		System    SystemConfig
	}(masked))
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOptional is getEnvString but a variable set to "" wins over the default.
func getEnvOptional(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
