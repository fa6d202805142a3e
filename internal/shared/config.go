package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Playlists   PlaylistsConfig   `toml:"playlists"`
	Plays       PlaysConfig       `toml:"plays"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains platform-specific credentials.
type CredentialsConfig struct {
	Spotify    SpotifyConfig    `toml:"spotify"`
	AppleMusic AppleMusicConfig `toml:"apple_music"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// AuthURL, TokenURL and APIURL default to the public Spotify endpoints when empty.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RedirectURI  string  `toml:"redirect_uri"`
	AuthURL      string  `toml:"auth_url"`
	TokenURL     string  `toml:"token_url"`
	APIURL       string  `toml:"api_url"`
	RateLimit    float64 `toml:"rate_limit"`
}

// AppleMusicConfig contains Apple Music developer credentials.
type AppleMusicConfig struct {
	TeamID string `toml:"team_id"`
	KeyID  string `toml:"key_id"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SessionConfig controls when sessions open and the window they cover.
type SessionConfig struct {
	Cron      string `toml:"cron"`
	Timezone  string `toml:"timezone"`
	StartHour int    `toml:"start_hour"`
	EndHour   int    `toml:"end_hour"`
}

// PlaylistsConfig controls playlist generation runs.
type PlaylistsConfig struct {
	Cron               string `toml:"cron"`
	SongsPerPlaylist   int    `toml:"songs_per_playlist"`
	CatchupLimit       int    `toml:"catchup_limit"`
	FallbackPlaylistID string `toml:"fallback_playlist_id"`
	Workers            int    `toml:"workers"`
}

// PlaysConfig controls recent play ingestion.
type PlaysConfig struct {
	Cron string `toml:"cron"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `toml:"level"`
}

// Location resolves the configured session timezone, falling back to UTC.
func (s SessionConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the fields the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Session.EndHour <= c.Session.StartHour {
		return fmt.Errorf("%w: session end_hour must be after start_hour", ErrInvalidConfig)
	}
	if c.Session.StartHour < 0 || c.Session.EndHour > 24 {
		return fmt.Errorf("%w: session hours must be within 0-24", ErrInvalidConfig)
	}
	if c.Playlists.SongsPerPlaylist <= 0 {
		return fmt.Errorf("%w: songs_per_playlist must be positive", ErrInvalidConfig)
	}
	if c.Playlists.CatchupLimit <= 0 {
		return fmt.Errorf("%w: catchup_limit must be positive", ErrInvalidConfig)
	}
	if c.Session.Timezone != "" {
		if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Session.Timezone, err)
		}
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
