// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Xuanwo/go-locale"
	"github.com/kkyr/fig"
	"golang.org/x/text/language"
)

const (
	configEnv         = "TAXIWIDGET"
	DefaultTextTpl    = "{{if .HasFix}}🚕 {{.Pickup}}{{else}}🚕 no fix{{end}}"
	DefaultTooltipTpl = "{{if .HasFix}}Pickup: {{.Address.DisplayName}}\n" +
		"Position: {{floatFormat .Latitude 5}}, {{floatFormat .Longitude 5}}\n" +
		"Accuracy: {{.Accuracy}} via {{.Provider}}\n" +
		"Fix: {{timeFormat .FixTime \"15:04:05\"}} ({{duration .Age}} ago){{if .Stale}} stale{{end}}" +
		"{{else}}Waiting for a position fix{{end}}"

	GeocoderNominatim = "nominatim"
)

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrInvalidAccuracy = errors.New("accuracy must not be negative")
	ErrAllSourcesOff   = errors.New("all position sources are disabled")
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Intervals struct {
		Detect     time.Duration `fig:"detect" default:"15s"`
		Refresh    time.Duration `fig:"refresh" default:"30s"`
		StaleAfter time.Duration `fig:"stale_after" default:"10m"`
		WakeDelay  time.Duration `fig:"wake_delay" default:"5s"`
	} `fig:"intervals"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	GeoLocation struct {
		File                   string  `fig:"file"`
		FileAccuracy           float64 `fig:"file_accuracy" default:"3000"`
		GPSDAddress            string  `fig:"gpsd_address" default:"localhost:2947"`
		DisableGeoIP           bool    `fig:"disable_geoip"`
		DisableGeolocationFile bool    `fig:"disable_geolocation_file"`
		DisableGPSD            bool    `fig:"disable_gpsd"`
		DisableICHNAEA         bool    `fig:"disable_ichnaea"`
	} `fig:"geolocation"`

	GeoCoder struct {
		Disable   bool          `fig:"disable"`
		Provider  string        `fig:"provider" default:"nominatim"`
		CacheHit  time.Duration `fig:"cache_hit" default:"1h"`
		CacheMiss time.Duration `fig:"cache_miss" default:"5m"`
	} `fig:"geocoder"`

	DisableSleepMonitor bool `fig:"disable_sleep_monitor"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the loaded values and fills in the derived defaults. fig applies the default
// tags to every zero value, so a configured 0 for an interval or the file accuracy means "use the
// default"; only values set in code can still be zero here.
func (c *Config) Validate() error {
	if c.Intervals.Detect <= 0 {
		return fmt.Errorf("invalid detect interval %s: %w", c.Intervals.Detect, ErrInvalidInterval)
	}
	if c.Intervals.Refresh <= 0 {
		return fmt.Errorf("invalid refresh interval %s: %w", c.Intervals.Refresh, ErrInvalidInterval)
	}
	if c.Intervals.StaleAfter <= 0 {
		return fmt.Errorf("invalid stale_after interval %s: %w", c.Intervals.StaleAfter, ErrInvalidInterval)
	}
	if c.Intervals.WakeDelay < 0 {
		return fmt.Errorf("invalid wake_delay %s: %w", c.Intervals.WakeDelay, ErrInvalidInterval)
	}
	if c.GeoLocation.FileAccuracy < 0 {
		return fmt.Errorf("invalid file_accuracy %f: %w", c.GeoLocation.FileAccuracy, ErrInvalidAccuracy)
	}
	if c.GeoLocation.DisableGeoIP && c.GeoLocation.DisableGeolocationFile &&
		c.GeoLocation.DisableGPSD && c.GeoLocation.DisableICHNAEA {
		return ErrAllSourcesOff
	}
	if c.GeoCoder.Provider != GeocoderNominatim {
		return fmt.Errorf("unsupported geocoder provider: %s", c.GeoCoder.Provider)
	}
	if c.Locale == "" {
		c.Locale = detectLocale().String()
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "taxiwidget", "geolocation")
	}

	return nil
}

// Language returns the configured locale as language tag, falling back to English.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func detectLocale() language.Tag {
	tag, err := locale.Detect()
	if err != nil || tag == language.Und {
		return language.English
	}
	return tag
}
