package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jask/orphanreg/internal/geo"
)

// Config holds application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Map     MapConfig     `mapstructure:"map"`
	Preview PreviewConfig `mapstructure:"preview"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig points at the orphanage backend.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ListingRoute string        `mapstructure:"listing_route"`
}

// MapConfig holds the map picker's starting view and tile source.
type MapConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLng float64 `mapstructure:"center_lng"`
	Zoom      int     `mapstructure:"zoom"`
	TileURL   string  `mapstructure:"tile_url"`
}

// DefaultCenter is where the map opens.
func (m MapConfig) DefaultCenter() geo.LatLng {
	return geo.LatLng{Lat: m.CenterLat, Lng: m.CenterLng}
}

// PreviewConfig controls the loopback preview server.
type PreviewConfig struct {
	Addr string `mapstructure:"addr"`
}

// JournalConfig holds sqlite settings. An empty Path disables the journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	home := os.Getenv("HOME")
	v.SetDefault("api.base_url", "http://localhost:3333")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.listing_route", "/app")
	v.SetDefault("map.center_lat", -23.6485368)
	v.SetDefault("map.center_lng", -46.6470185)
	v.SetDefault("map.zoom", 15)
	v.SetDefault("map.tile_url", "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("preview.addr", "127.0.0.1:0")
	v.SetDefault("journal.path", filepath.Join(home, ".local", "share", "orphanreg", "journal.db"))
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "orphanreg", "orphanreg.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 7)
}

// Load reads configuration from .env, the config file and env.
// Env var overrides use prefix ORPHANREG_.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("ORPHANREG_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "orphanreg"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ORPHANREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the client cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config: api.timeout must not be negative")
	}
	if c.Map.Zoom < geo.MinZoom || c.Map.Zoom > geo.MaxZoom {
		return fmt.Errorf("config: map.zoom must be between %d and %d", geo.MinZoom, geo.MaxZoom)
	}
	if !strings.Contains(c.Map.TileURL, "{z}") || !strings.Contains(c.Map.TileURL, "{x}") || !strings.Contains(c.Map.TileURL, "{y}") {
		return fmt.Errorf("config: map.tile_url must contain {z}, {x} and {y}")
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("ORPHANREG_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "orphanreg", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.listing_route", cfg.API.ListingRoute)
	v.Set("map.center_lat", cfg.Map.CenterLat)
	v.Set("map.center_lng", cfg.Map.CenterLng)
	v.Set("map.zoom", cfg.Map.Zoom)
	v.Set("map.tile_url", cfg.Map.TileURL)
	v.Set("preview.addr", cfg.Preview.Addr)
	v.Set("journal.path", cfg.Journal.Path)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("log.max_backups", cfg.Log.MaxBackups)
	v.Set("log.max_age_days", cfg.Log.MaxAgeDays)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
