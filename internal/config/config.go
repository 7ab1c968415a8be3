// Package config loads the observatory, search and service settings.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/transform"
)

// EnvPrefix prefixes environment overrides, e.g. TRANSITEPHEM_SEARCH_DAYS.
const EnvPrefix = "TRANSITEPHEM"

// Config represents the complete application configuration
type Config struct {
	Observatory ObservatoryConfig `mapstructure:"observatory"`
	Search      SearchConfig      `mapstructure:"search"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Output      OutputConfig      `mapstructure:"output"`
	Now         NowConfig         `mapstructure:"now"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ObservatoryConfig describes the observing site. Angles are sexagesimal
// strings ("46:57:08.4"); longitude is positive east.
type ObservatoryConfig struct {
	Name        string  `mapstructure:"name"`
	Latitude    string  `mapstructure:"latitude"`
	Longitude   string  `mapstructure:"longitude"`
	Elevation   float64 `mapstructure:"elevation"`   // metres
	Temperature float64 `mapstructure:"temperature"` // Celsius
	MinHorizon  string  `mapstructure:"min_horizon"`
	TwilightDeg float64 `mapstructure:"twilight"` // Sun altitude, degrees
}

// SearchConfig selects the window and the planets to search.
type SearchConfig struct {
	Start      string  `mapstructure:"start"` // YYYY-MM-DD or YYYY/MM/DD, UT
	End        string  `mapstructure:"end"`
	Days       float64 `mapstructure:"days"` // used when start/end are empty
	Transits   bool    `mapstructure:"transits"`
	Eclipses   bool    `mapstructure:"eclipses"`
	MagLimit   float64 `mapstructure:"mag_limit"`
	Band       string  `mapstructure:"band"`
	DepthLimit float64 `mapstructure:"depth_limit"`
	MaxEpochs  int     `mapstructure:"max_epochs"`
}

// CatalogConfig holds catalog download and caching configuration
type CatalogConfig struct {
	SourceURL string        `mapstructure:"source_url"`
	CacheDir  string        `mapstructure:"cache_dir"`
	MaxFiles  int           `mapstructure:"max_files"`
	MaxAge    time.Duration `mapstructure:"max_age"`
	DBPath    string        `mapstructure:"db_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OutputConfig controls the written reports.
type OutputConfig struct {
	Dir              string  `mapstructure:"dir"`
	CSV              bool    `mapstructure:"csv"`
	HTML             bool    `mapstructure:"html"`
	LocalOffsetHours float64 `mapstructure:"local_offset_hours"` // 0 disables local-time columns
}

// NowConfig controls the "transiting now" summaries.
type NowConfig struct {
	Lookahead time.Duration `mapstructure:"lookahead"`
	Grace     time.Duration `mapstructure:"grace"` // delivery allowance after a transit's egress
	MaxLength int           `mapstructure:"max_length"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AuthEnabled    bool          `mapstructure:"auth_enabled"`
	AuthToken      string        `mapstructure:"auth_token"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	MaxDays        int           `mapstructure:"max_days"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"` // searches per client IP
	CacheRefresh   time.Duration `mapstructure:"cache_refresh"`
	CatalogRefresh time.Duration `mapstructure:"catalog_refresh"`
}

// MetricsConfig configures metric export for batch runs.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node_exporter textfile path, empty disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path and environment variables. An empty
// path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Search.Band = strings.ToUpper(cfg.Search.Band)
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Manastash Ridge Observatory
	v.SetDefault("observatory.name", "Manastash Ridge Observatory")
	v.SetDefault("observatory.latitude", "46:57:03.6")
	v.SetDefault("observatory.longitude", "-120:43:26.4")
	v.SetDefault("observatory.elevation", 1198.0)
	v.SetDefault("observatory.temperature", 10.0)
	v.SetDefault("observatory.min_horizon", "+20:00:00")
	v.SetDefault("observatory.twilight", -12.0)

	v.SetDefault("search.start", "")
	v.SetDefault("search.end", "")
	v.SetDefault("search.days", 30.0)
	v.SetDefault("search.transits", true)
	v.SetDefault("search.eclipses", false)
	v.SetDefault("search.mag_limit", 11.0)
	v.SetDefault("search.band", "V")
	v.SetDefault("search.depth_limit", 0.008)
	v.SetDefault("search.max_epochs", ephem.DefaultMaxEpochs)

	v.SetDefault("catalog.source_url", "http://www.exoplanets.org/csv-files/exoplanets.csv")
	v.SetDefault("catalog.cache_dir", "./data/catalog")
	v.SetDefault("catalog.max_files", 3)
	v.SetDefault("catalog.max_age", "336h")
	v.SetDefault("catalog.db_path", "./data/transitephem.db")
	v.SetDefault("catalog.timeout", "60s")

	v.SetDefault("output.dir", "./outputs")
	v.SetDefault("output.csv", true)
	v.SetDefault("output.html", true)
	v.SetDefault("output.local_offset_hours", 0.0)

	v.SetDefault("now.lookahead", "29h")
	v.SetDefault("now.grace", "10m")
	v.SetDefault("now.max_length", 140)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.auth_enabled", false)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.max_days", 366)
	v.SetDefault("server.max_concurrent", 2)
	v.SetDefault("server.cache_refresh", "10m")
	v.SetDefault("server.catalog_refresh", "6h")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if _, err := c.Observatory.Observer(); err != nil {
		return err
	}
	if _, err := c.Observatory.HorizonDeg(); err != nil {
		return err
	}
	if c.Observatory.TwilightDeg < -90 || c.Observatory.TwilightDeg > 0 {
		return fmt.Errorf("observatory.twilight must be between -90 and 0")
	}

	if !c.Search.Transits && !c.Search.Eclipses {
		return fmt.Errorf("search.transits or search.eclipses must be enabled")
	}
	if c.Search.Band != "V" && c.Search.Band != "K" {
		return fmt.Errorf("search.band must be one of: V, K")
	}
	if c.Search.DepthLimit < 0 {
		return fmt.Errorf("search.depth_limit must not be negative")
	}
	if c.Search.MaxEpochs < 1 {
		return fmt.Errorf("search.max_epochs must be at least 1")
	}
	if (c.Search.Start == "") != (c.Search.End == "") {
		return fmt.Errorf("search.start and search.end must be set together")
	}
	if c.Search.Start == "" && c.Search.Days <= 0 {
		return fmt.Errorf("search.days must be positive when no dates are given")
	}
	if c.Search.Start != "" {
		if _, err := c.Search.Window(time.Time{}); err != nil {
			return err
		}
	}

	if c.Catalog.CacheDir == "" {
		return fmt.Errorf("catalog.cache_dir is required")
	}
	if c.Catalog.MaxFiles < 1 {
		return fmt.Errorf("catalog.max_files must be at least 1")
	}
	if c.Catalog.MaxAge < time.Hour {
		return fmt.Errorf("catalog.max_age must be at least 1 hour")
	}

	if c.Output.LocalOffsetHours < -14 || c.Output.LocalOffsetHours > 14 {
		return fmt.Errorf("output.local_offset_hours must be between -14 and 14")
	}

	if c.Now.Lookahead <= 0 {
		return fmt.Errorf("now.lookahead must be positive")
	}
	if c.Now.Grace < 0 {
		return fmt.Errorf("now.grace must not be negative")
	}
	if c.Now.MaxLength < 40 {
		return fmt.Errorf("now.max_length must be at least 40")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		return fmt.Errorf("server.auth_token is required when auth is enabled")
	}
	if c.Server.MaxDays < 1 {
		return fmt.Errorf("server.max_days must be at least 1")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be at least 1")
	}
	if c.Server.CacheRefresh < time.Second || c.Server.CatalogRefresh < time.Minute {
		return fmt.Errorf("server.cache_refresh must be at least 1s and server.catalog_refresh at least 1m")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Observer converts the site description for the astrometric engine.
func (o ObservatoryConfig) Observer() (transform.Observer, error) {
	lat, err := transform.ParseSexagesimal(o.Latitude)
	if err != nil {
		return transform.Observer{}, fmt.Errorf("observatory.latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return transform.Observer{}, fmt.Errorf("observatory.latitude must be between -90 and 90")
	}
	lon, err := transform.ParseSexagesimal(o.Longitude)
	if err != nil {
		return transform.Observer{}, fmt.Errorf("observatory.longitude: %w", err)
	}
	if lon < -180 || lon > 360 {
		return transform.Observer{}, fmt.Errorf("observatory.longitude must be between -180 and 360")
	}
	if o.Elevation < -500 || o.Elevation > 9000 {
		return transform.Observer{}, fmt.Errorf("observatory.elevation must be between -500 and 9000 m")
	}
	return transform.NewObserver(lat, lon, o.Elevation, o.Temperature), nil
}

// HorizonDeg returns the minimum altitude in degrees.
func (o ObservatoryConfig) HorizonDeg() (float64, error) {
	h, err := transform.ParseSexagesimal(o.MinHorizon)
	if err != nil {
		return 0, fmt.Errorf("observatory.min_horizon: %w", err)
	}
	if h < -10 || h >= 90 {
		return 0, fmt.Errorf("observatory.min_horizon must be between -10 and 90")
	}
	return h, nil
}

// Window returns the search window: the configured dates, or now through
// now + days when no dates are set. Dates are UT midnights.
func (s SearchConfig) Window(now time.Time) (ephem.Window, error) {
	if s.Start == "" {
		if s.Days <= 0 || math.IsNaN(s.Days) {
			return ephem.Window{}, fmt.Errorf("%w: search.days must be positive", ephem.ErrInvalidWindow)
		}
		start := transform.JulianDate(now)
		return ephem.Window{Start: start, End: start + s.Days}, nil
	}

	start, err := ParseDate(s.Start)
	if err != nil {
		return ephem.Window{}, fmt.Errorf("search.start: %w", err)
	}
	end, err := ParseDate(s.End)
	if err != nil {
		return ephem.Window{}, fmt.Errorf("search.end: %w", err)
	}
	w := ephem.Window{Start: transform.JulianDate(start), End: transform.JulianDate(end)}
	if err := w.Validate(); err != nil {
		return ephem.Window{}, err
	}
	return w, nil
}

var errBadDate = errors.New("date must be YYYY-MM-DD or YYYY/MM/DD")

// ParseDate reads a UT calendar date.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02", "2006/1/2"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadDate, s)
}
