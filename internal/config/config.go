package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the insights binaries.
type Config struct {
	Services  Services  `yaml:"services"`
	Dashboard Dashboard `yaml:"dashboard"`
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
}

// Services locates the analysis and market-data services.
type Services struct {
	AnalysisURL   string        `yaml:"analysis_url"`
	MarketDataURL string        `yaml:"marketdata_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Dashboard holds the fixed request parameters and card fetch limits.
type Dashboard struct {
	AccountID       string `yaml:"account_id"`
	Benchmark       string `yaml:"benchmark"`
	Strategy        string `yaml:"strategy"`
	DefaultSymbols  string `yaml:"default_symbols"`
	HistoryMonths   int    `yaml:"history_months"`
	FetchWorkers    int    `yaml:"fetch_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Server holds the development backend configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Source is "parquet" (local store only) or "alpaca" (upstream behind
	// the SQLite cache).
	Source         string        `yaml:"source"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	AnalysisMonths int           `yaml:"analysis_months"`
	Positions      []Position    `yaml:"positions"`
}

// Position is one holding reported by the stub portfolio endpoint.
type Position struct {
	Symbol string `yaml:"symbol"`
	Qty    int    `yaml:"qty"`
}

// Storage holds paths for the development backend's bar data.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials for the upstream bar source.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
	// RateLimitPerMin caps upstream bar requests; 0 disables the limit.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
	// Workers caps concurrent upstream fetches during a sync.
	Workers int `yaml:"workers"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is present. The
// request parameters mirror what the dashboard has always sent.
func Default() *Config {
	return &Config{
		Services: Services{
			AnalysisURL:   "http://localhost:8000",
			MarketDataURL: "http://localhost:8000",
			Timeout:       30 * time.Second,
		},
		Dashboard: Dashboard{
			AccountID:      "demo",
			Benchmark:      "SPY",
			Strategy:       "momo_trend@0.1.0",
			DefaultSymbols: "AAPL,MSFT,AMZN,TSLA",
			HistoryMonths:  6,
			FetchWorkers:   4,
		},
		Server: Server{
			Host:           "127.0.0.1",
			Port:           8000,
			Source:         "parquet",
			CacheTTL:       12 * time.Hour,
			AnalysisMonths: 18,
		},
		Storage: Storage{
			DataDir: "data",
		},
		Alpaca: Alpaca{
			Feed:            "iex",
			RateLimitPerMin: 200,
			Workers:         4,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults, then
// applies .env and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides lists the environment variables honoured on top of the file.
// Empty values leave the file setting untouched.
type envOverrides struct {
	AnalysisURL   string `envconfig:"INSIGHTS_ANALYSIS_URL"`
	MarketDataURL string `envconfig:"INSIGHTS_MARKETDATA_URL"`
	AccountID     string `envconfig:"INSIGHTS_ACCOUNT_ID"`
	FetchWorkers  int    `envconfig:"INSIGHTS_FETCH_WORKERS"`
	DataDir       string `envconfig:"DATA_DIR"`
	SQLitePath    string `envconfig:"SQLITE_PATH"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	AlpacaKey     string `envconfig:"ALPACA_API_KEY"`
	AlpacaSecret  string `envconfig:"ALPACA_API_SECRET"`
	AlpacaDataURL string `envconfig:"ALPACA_DATA_URL"`

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	APCAKey    string `envconfig:"APCA_API_KEY_ID"`
	APCASecret string `envconfig:"APCA_API_SECRET_KEY"`
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Services.AnalysisURL, env.AnalysisURL)
	set(&cfg.Services.MarketDataURL, env.MarketDataURL)
	set(&cfg.Dashboard.AccountID, env.AccountID)
	set(&cfg.Storage.DataDir, env.DataDir)
	set(&cfg.Storage.SQLitePath, env.SQLitePath)
	set(&cfg.Logging.Level, env.LogLevel)
	set(&cfg.Alpaca.APIKey, env.AlpacaKey)
	set(&cfg.Alpaca.APISecret, env.AlpacaSecret)
	set(&cfg.Alpaca.DataURL, env.AlpacaDataURL)
	set(&cfg.Alpaca.APIKey, env.APCAKey)
	set(&cfg.Alpaca.APISecret, env.APCASecret)

	if env.FetchWorkers > 0 {
		cfg.Dashboard.FetchWorkers = env.FetchWorkers
	}
	return nil
}
