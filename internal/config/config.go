package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RAWFETCH"

// Config holds the application configuration loaded from flags, files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	URL                   string        `mapstructure:"url"`
	TargetsFile           string        `mapstructure:"targets_file"`
	ConnectTimeoutSeconds int64         `mapstructure:"connect_timeout"`
	TotalTimeoutSeconds   int64         `mapstructure:"total_timeout"`
	FollowRedirects       bool          `mapstructure:"follow_redirects"`
	ConnectTimeout        time.Duration `mapstructure:"-"`
	TotalTimeout          time.Duration `mapstructure:"-"`

	DumpFormat  string `mapstructure:"format"`
	InspectHTML bool   `mapstructure:"inspect_html"`
	FailOnError bool   `mapstructure:"fail_on_error"`

	IntervalSeconds int64         `mapstructure:"interval"`
	Interval        time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Flags declares the command-line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("url", "u", "", "URL to fetch (overrides targets_file)")
	fs.StringP("targets", "t", "", "YAML or JSON file listing fetch targets")
	fs.Int64("timeout", 0, "connect timeout in seconds")
	fs.Int64("total-timeout", 0, "total request timeout in seconds (0 = unbounded)")
	fs.StringP("format", "f", "", "dump format: vardump, raw or json")
	fs.Int64("interval", 0, "repeat the fetch every N seconds (0 = once)")
	fs.Bool("follow-redirects", false, "follow HTTP redirects")
	fs.Bool("inspect", false, "log a summary of HTML responses")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	return fs
}

var flagKeys = map[string]string{
	"url":              "url",
	"targets":          "targets_file",
	"timeout":          "connect_timeout",
	"total-timeout":    "total_timeout",
	"format":           "format",
	"interval":         "interval",
	"follow-redirects": "follow_redirects",
	"inspect":          "inspect_html",
	"log-level":        "log_level",
}

// Load reads configuration from environment variables, the optional .env file and
// flags. fs may be nil; only flags that were explicitly set override other sources.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "rawfetch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("url", "")
	v.SetDefault("targets_file", "")
	v.SetDefault("connect_timeout", 5) // seconds
	v.SetDefault("total_timeout", 0)
	v.SetDefault("follow_redirects", false)
	v.SetDefault("format", "vardump")
	v.SetDefault("inspect_html", false)
	v.SetDefault("fail_on_error", false)
	v.SetDefault("interval", 0)
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		if args := fs.Args(); len(args) > 0 && !isFlagSet(fs, "url") {
			v.Set("url", args[0])
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.TargetsFile = strings.TrimSpace(cfg.TargetsFile)
	cfg.DumpFormat = strings.ToLower(strings.TrimSpace(cfg.DumpFormat))

	if cfg.URL == "" && cfg.TargetsFile == "" {
		return fmt.Errorf("nothing to fetch: set url or targets_file")
	}

	if cfg.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid connect_timeout (must be positive seconds)")
	}
	if cfg.TotalTimeoutSeconds < 0 {
		return fmt.Errorf("invalid total_timeout (must be zero or positive seconds)")
	}
	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	cfg.TotalTimeout = time.Duration(cfg.TotalTimeoutSeconds) * time.Second

	if cfg.IntervalSeconds < 0 {
		return fmt.Errorf("invalid interval (must be zero or positive seconds)")
	}
	cfg.Interval = time.Duration(cfg.IntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}

func isFlagSet(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
