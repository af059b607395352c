// Package config loads the daemon configuration: a TOML file with
// environment variable overrides on top.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the parsed, validated daemon configuration.
type Config struct {
	Listen      string
	MPDSocket   string
	SubsonicURL *url.URL
	Podcasts    *Podcasts
}

// Podcasts configures the optional podcasts server.
type Podcasts struct {
	URL           *url.URL
	EpisodePrefix string
}

const (
	defaultConfigPath = "/etc/sonicast/config.toml"
	defaultListen     = "127.0.0.1:8080"
)

// Environment variables that override file values.
const (
	envListen      = "SONICAST_LISTEN"
	envMPDSocket   = "MPD_SOCKET"
	envSubsonicURL = "SUBSONIC_URL"
)

type rawConfig struct {
	Listen string `toml:"listen"`

	MPD struct {
		Socket string `toml:"socket"`
	} `toml:"mpd"`

	Subsonic struct {
		URL string `toml:"url"`
	} `toml:"subsonic"`

	Podcasts *struct {
		URL           string `toml:"url"`
		EpisodePrefix string `toml:"episode-prefix"`
	} `toml:"podcasts"`
}

// Load reads path (the default path when empty), applies environment
// overrides, and validates the result. A missing file at the default path
// is not an error; env vars and defaults must then fill everything in.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath
	}

	var raw rawConfig
	bytes, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&raw)

	return validate(&raw)
}

func applyEnv(raw *rawConfig) {
	if v := os.Getenv(envListen); v != "" {
		raw.Listen = v
	}
	if v := os.Getenv(envMPDSocket); v != "" {
		raw.MPD.Socket = v
	}
	if v := os.Getenv(envSubsonicURL); v != "" {
		raw.Subsonic.URL = v
	}
}

func validate(raw *rawConfig) (*Config, error) {
	cfg := &Config{Listen: strings.TrimSpace(raw.Listen)}
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}

	cfg.MPDSocket = strings.TrimSpace(raw.MPD.Socket)
	if cfg.MPDSocket == "" {
		return nil, errors.New("mpd socket is not configured (mpd.socket or MPD_SOCKET)")
	}

	subsonicURL, err := parseURL(raw.Subsonic.URL, "subsonic.url or SUBSONIC_URL")
	if err != nil {
		return nil, err
	}
	cfg.SubsonicURL = subsonicURL

	if raw.Podcasts != nil {
		podcastsURL, err := parseURL(raw.Podcasts.URL, "podcasts.url")
		if err != nil {
			return nil, err
		}
		prefix := strings.TrimSpace(raw.Podcasts.EpisodePrefix)
		if prefix == "" {
			return nil, errors.New("podcasts.episode-prefix is not configured")
		}
		cfg.Podcasts = &Podcasts{URL: podcastsURL, EpisodePrefix: prefix}
	}

	return cfg, nil
}

func parseURL(value, what string) (*url.URL, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is not configured", what)
	}
	u, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s must be an http or https url, got %q", what, value)
	}
	return u, nil
}
