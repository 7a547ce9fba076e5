package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Scraper     ScraperConfig   `toml:"scraper"`
	Cleaner     CleanerConfig   `toml:"cleaner"`
	Artifacts   ArtifactsConfig `toml:"artifacts"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Schedule    ScheduleConfig  `toml:"schedule"`
}

// ScraperConfig contains review-site crawl configuration
type ScraperConfig struct {
	BaseURL       string        `toml:"base_url"`       // Review site base URL (e.g., "https://www.trustpilot.com/review")
	CompanyDomain string        `toml:"company_domain"` // Company domain to harvest reviews for
	Pages         int           `toml:"pages"`          // Number of listing pages to crawl
	Headless      bool          `toml:"headless"`       // Run Chrome in headless mode
	UserAgent     string        `toml:"user_agent"`     // Browser user agent string
	PageTimeout   time.Duration `toml:"page_timeout"`   // Max wait for review cards to render on a page
	MinDelay      time.Duration `toml:"min_delay"`      // Minimum politeness delay between page fetches
	MaxDelay      time.Duration `toml:"max_delay"`      // Upper bound for the randomized politeness delay
}

// CleanerConfig contains normalization thresholds and sentinels
type CleanerConfig struct {
	AnonymousName string `toml:"anonymous_name"` // Sentinel for missing reviewer names
}

// ArtifactsConfig contains intermediate artifact file locations
type ArtifactsConfig struct {
	Dir         string `toml:"dir"`          // Directory for intermediate JSON artifacts
	RawFile     string `toml:"raw_file"`     // Raw candidate artifact filename
	CleanedFile string `toml:"cleaned_file"` // Cleaned/validated artifact filename
}

// StorageConfig wraps the persistent store configuration
type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path"`            // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`   // Page cache size in MB
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // Busy timeout in milliseconds
	WALMode       bool   `toml:"wal_mode"`        // Enable WAL journal mode
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScheduleConfig controls the recurring pipeline schedule
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"` // Run the pipeline on a cron schedule
	Cron    string `toml:"cron"`    // Cron expression (robfig/cron format)
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in colligo.toml; technical
// parameters are hardcoded here for stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Scraper: ScraperConfig{
			BaseURL:       "https://www.trustpilot.com/review",
			CompanyDomain: "finelo.com",
			Pages:         10, // ~20 reviews per page
			Headless:      true,
			UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			PageTimeout:   10 * time.Second,
			MinDelay:      1500 * time.Millisecond,
			MaxDelay:      3 * time.Second,
		},
		Cleaner: CleanerConfig{
			AnonymousName: "Anonymous",
		},
		Artifacts: ArtifactsConfig{
			Dir:         "./data",
			RawFile:     "raw_reviews.json",
			CleanedFile: "cleaned_reviews.json",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/reviews.db",
				CacheSizeMB:   10,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 6 * * *", // Daily at 06:00
		},
	}
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones. Environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if domain := os.Getenv("COLLIGO_COMPANY_DOMAIN"); domain != "" {
		config.Scraper.CompanyDomain = domain
	}
	if pages := os.Getenv("COLLIGO_PAGES"); pages != "" {
		if p, err := strconv.Atoi(pages); err == nil && p > 0 {
			config.Scraper.Pages = p
		}
	}
	if dir := os.Getenv("COLLIGO_ARTIFACTS_DIR"); dir != "" {
		config.Artifacts.Dir = dir
	}
	if path := os.Getenv("COLLIGO_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if cron := os.Getenv("COLLIGO_SCHEDULE_CRON"); cron != "" {
		config.Schedule.Cron = cron
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, domain string, pages int, dbPath string) {
	if domain != "" {
		config.Scraper.CompanyDomain = domain
	}
	if pages > 0 {
		config.Scraper.Pages = pages
	}
	if dbPath != "" {
		config.Storage.SQLite.Path = dbPath
	}
}
