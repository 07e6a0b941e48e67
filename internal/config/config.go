package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"vpnproxy/internal/logger"
)

var log = logger.New("config")

type Config struct {
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	VPN      VPNConfig      `mapstructure:"vpn" validate:"required"`
	Scraper  ScraperConfig  `mapstructure:"scraper" validate:"required"`
	Checker  CheckerConfig  `mapstructure:"checker" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

type VPNConfig struct {
	APIURL            string        `mapstructure:"api_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=5m"`
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	Retries           int           `mapstructure:"retries" validate:"required,min=1,max=10"`
	RetryDelay        time.Duration `mapstructure:"retry_delay" validate:"min=0,max=1m"`
	OutputDir         string        `mapstructure:"output_dir" validate:"required"`
	Extension         string        `mapstructure:"extension" validate:"required,file_ext"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"required,min=1,max=20"`
	Overwrite         bool          `mapstructure:"overwrite"`
	ExactCountryMatch bool          `mapstructure:"exact_country_match"`
}

type ScraperConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=2m"`
	UserAgent    string        `mapstructure:"user_agent" validate:"required"`
	Sources      []string      `mapstructure:"sources" validate:"required,min=1,dive,oneof=freeproxylist proxyscrape textlist"`
	PageURL      string        `mapstructure:"page_url" validate:"required,url"`
	Limit        int           `mapstructure:"limit" validate:"required,min=1,max=1000"`
	RequireHTTPS bool          `mapstructure:"require_https"`
}

type CheckerConfig struct {
	TestURL       string        `mapstructure:"test_url" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=1m"`
	MaxWorkers    int           `mapstructure:"max_workers" validate:"required,min=1,max=200"`
	UserAgent     string        `mapstructure:"user_agent" validate:"required"`
	RateLimit     float64       `mapstructure:"rate_limit" validate:"min=0"`
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"required,min=1m,max=24h"`
}

type DatabaseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxAge  time.Duration `mapstructure:"max_age" validate:"required,min=1h,max=720h"`
}

const mobileUserAgent = "Mozilla/5.0 (Linux; Android 7.0; SM-G930V Build/NRD90M) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/59.0.3071.125 Mobile Safari/537.36"

// setDefaults configures default values for viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	// VPN Gate defaults
	v.SetDefault("vpn.api_url", "http://www.vpngate.net/api/iphone/")
	v.SetDefault("vpn.timeout", "30s")
	v.SetDefault("vpn.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("vpn.retries", 3)
	v.SetDefault("vpn.retry_delay", "2s")
	v.SetDefault("vpn.output_dir", ".")
	v.SetDefault("vpn.extension", ".ovpn")
	v.SetDefault("vpn.max_attempts", 5)
	v.SetDefault("vpn.overwrite", true)
	v.SetDefault("vpn.exact_country_match", false)

	// Scraper defaults
	v.SetDefault("scraper.timeout", "30s")
	v.SetDefault("scraper.user_agent", mobileUserAgent)
	v.SetDefault("scraper.sources", []string{"freeproxylist"})
	v.SetDefault("scraper.page_url", "https://free-proxy-list.net/")
	v.SetDefault("scraper.limit", 10)
	v.SetDefault("scraper.require_https", true)

	// Checker defaults
	v.SetDefault("checker.test_url", "https://httpbin.org/ip")
	v.SetDefault("checker.timeout", "3s")
	v.SetDefault("checker.max_workers", 10)
	v.SetDefault("checker.user_agent", mobileUserAgent)
	v.SetDefault("checker.rate_limit", 0)
	v.SetDefault("checker.check_interval", "10m")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "./data/vpnproxy.db")
	v.SetDefault("database.max_age", "24h")
}

// LoadConfig loads configuration from defaults, an optional config file, .env and the environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vpnproxy")

	// .env values become plain environment variables picked up below
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnBg("Failed to load .env file: %v", err)
	}

	v.SetEnvPrefix("VPNPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.DebugBg("No config file found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks struct tags and custom rules
func Validate(config *Config) error {
	validate := validator.New()

	if err := registerCustomValidators(validate); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// registerCustomValidators adds custom validation rules
func registerCustomValidators(validate *validator.Validate) error {
	// Extension appended to saved profile names, e.g. ".ovpn"
	return validate.RegisterValidation("file_ext", func(fl validator.FieldLevel) bool {
		ext := fl.Field().String()
		return len(ext) > 1 && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, `/\`)
	})
}

// SaveConfigTemplate generates a sample configuration file
func SaveConfigTemplate(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}

	return nil
}

// PrintConfig displays the current configuration (for debugging)
func PrintConfig(config *Config) {
	log.DebugBg("Configuration loaded:")
	log.DebugBg("  VPN: %s (retries: %d, output: %s/*%s)", config.VPN.APIURL, config.VPN.Retries, config.VPN.OutputDir, config.VPN.Extension)
	log.DebugBg("  Scraper: %v from %s (limit: %d, https only: %v)", config.Scraper.Sources, config.Scraper.PageURL, config.Scraper.Limit, config.Scraper.RequireHTTPS)
	log.DebugBg("  Checker: %d workers, %v timeout, rate limit: %v/s, test url: %s",
		config.Checker.MaxWorkers, config.Checker.Timeout, config.Checker.RateLimit, config.Checker.TestURL)
	if config.Database.Enabled {
		log.DebugBg("  Database: %s (Max Age: %v)", config.Database.Path, config.Database.MaxAge)
	} else {
		log.DebugBg("  Database: [DISABLED]")
	}
}
