package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Strava   StravaConfig   `toml:"strava"`
	Site     SiteConfig     `toml:"site"`
	Uploads  UploadsConfig  `toml:"uploads"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// StravaConfig carries the OAuth client credentials and the endpoint URLs.
// Endpoints are configurable so tests can point the client at a local fake.
type StravaConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	AuthorizeURL  string `toml:"authorize_url"`
	TokenURL      string `toml:"token_url"`
	ActivitiesURL string `toml:"activities_url"`
	PageSize      int    `toml:"page_size"`
	MaxPages      int    `toml:"max_pages"`
}

// Configured reports whether the OAuth client credentials are present.
func (s StravaConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RedirectURI != ""
}

type SiteConfig struct {
	Title       string `toml:"title"`
	Description string `toml:"description,omitempty"`
	BaseURL     string `toml:"base_url,omitempty"`
}

type UploadsConfig struct {
	Dir        string `toml:"dir"`
	ThumbWidth int    `toml:"thumb_width"`
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, err
	}

	var config Config
	_, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func Save(config *Config, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(config)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Path: "./clubsite.db",
		},
		Strava: StravaConfig{
			ClientID:      "",
			ClientSecret:  "",
			RedirectURI:   "http://localhost:3000/api/strava/callback",
			AuthorizeURL:  "https://www.strava.com/oauth/authorize",
			TokenURL:      "https://www.strava.com/oauth/token",
			ActivitiesURL: "https://www.strava.com/api/v3/athlete/activities",
			PageSize:      200,
			MaxPages:      50,
		},
		Site: SiteConfig{
			Title:       "Mikkeller Running Club",
			Description: "Run together, drink together",
			BaseURL:     "http://localhost:3000",
		},
		Uploads: UploadsConfig{
			Dir:        "./uploads",
			ThumbWidth: 480,
		},
	}
}
