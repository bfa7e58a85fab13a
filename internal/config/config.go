package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded from the environment with
// an optional .env file on top.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"data/vckeeper.json"`
	DataDir     string `env:"DATA_DIR" envDefault:"data"`
	CacheDir    string `env:"CACHE_DIR" envDefault:"tempmusic"`

	// AllowedUsers is a static allow-list for restricted commands.
	// Empty means no restriction.
	AllowedUsers []string `env:"ALLOWED_USERS" envSeparator:","`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	CatboxUserHash string `env:"CATBOX_USER_HASH"`

	Debug bool `env:"DEBUG"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional, system env wins when absent

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
