// Package config loads and watches the daemon's YAML configuration: the
// listen address and the set of published calendar paths, each mapping to an
// upstream feed URL and a scrub policy.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calmux/icalmask/scrub"
)

// Scrub modes selectable per calendar.
const (
	ModeAnonymize = "anonymize"
	ModeFilter    = "filter"
)

var (
	ErrNoCalendars = errors.New("config declares no calendars")
)

// Calendar configures one published path.
type Calendar struct {
	// URL is the upstream feed to fetch. http or https.
	URL string `yaml:"url"`

	// Mode selects the transform: "anonymize" or "filter".
	Mode string `yaml:"mode"`

	// CalendarName replaces the upstream calendar's display name
	// (anonymize mode).
	CalendarName string `yaml:"calendar_name"`

	// RedactionMessage replaces event summaries (anonymize mode).
	RedactionMessage string `yaml:"redaction_message"`

	// Seed keys the identifier digest (anonymize mode). Keep it secret and
	// stable: changing it makes downstream clients re-import every event.
	Seed string `yaml:"seed"`

	// IgnoreUnknownProperties drops unrecognized event properties instead
	// of failing the request (anonymize mode).
	IgnoreUnknownProperties bool `yaml:"ignore_unknown_properties"`

	// MatchValue is the summary to drop events by (filter mode).
	MatchValue string `yaml:"match_value"`
}

// AnonymizeConfig converts the calendar entry into the transform's config.
func (c Calendar) AnonymizeConfig() scrub.AnonymizeConfig {
	return scrub.AnonymizeConfig{
		CalendarName:            c.CalendarName,
		RedactionMessage:        c.RedactionMessage,
		Seed:                    c.Seed,
		IgnoreUnknownProperties: c.IgnoreUnknownProperties,
	}
}

// FilterConfig converts the calendar entry into the transform's config.
func (c Calendar) FilterConfig() scrub.FilterConfig {
	return scrub.FilterConfig{MatchValue: c.MatchValue}
}

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Calendars maps URL path (without leading slash) to its calendar.
	Calendars map[string]Calendar `yaml:"calendars"`
}

// Normalize fills defaults for optional fields.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8000"
	}
	for path, cal := range c.Calendars {
		if cal.Mode == "" {
			cal.Mode = ModeAnonymize
		}
		if cal.CalendarName == "" {
			cal.CalendarName = "Anonymized"
		}
		if cal.RedactionMessage == "" {
			cal.RedactionMessage = "Busy"
		}
		c.Calendars[path] = cal
	}
}

// Validate rejects configurations that cannot serve a single request
// correctly. It runs after Normalize.
func (c *Config) Validate() error {
	if len(c.Calendars) == 0 {
		return ErrNoCalendars
	}
	for path, cal := range c.Calendars {
		if path == "" {
			return fmt.Errorf("calendar with empty path")
		}
		u, err := url.Parse(cal.URL)
		if err != nil {
			return fmt.Errorf("calendar %q: invalid url: %w", path, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("calendar %q: url scheme must be http or https, got %q", path, u.Scheme)
		}
		switch cal.Mode {
		case ModeAnonymize:
			if cal.Seed == "" {
				return fmt.Errorf("calendar %q: anonymize mode requires a seed", path)
			}
		case ModeFilter:
			if cal.MatchValue == "" {
				return fmt.Errorf("calendar %q: filter mode requires a match_value", path)
			}
		default:
			return fmt.Errorf("calendar %q: unknown mode %q", path, cal.Mode)
		}
	}
	return nil
}

// Load reads, normalizes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
