package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings are the server's process-level options, read from DESKLINE_*
// environment variables.
type Settings struct {
	Addr                   string `envconfig:"ADDR" default:"127.0.0.1:8080"`
	BasePath               string `envconfig:"BASE_PATH" default:"/v0"`
	JWTSecret              string `envconfig:"JWT_SECRET"`
	AllowLegacyActorHeader bool   `envconfig:"ALLOW_LEGACY_ACTOR_HEADER"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("DESKLINE", &s); err != nil {
		return Settings{}, fmt.Errorf("server settings: %w", err)
	}
	return s, nil
}

// Auth converts the settings into the handler's AuthConfig.
func (s Settings) Auth() AuthConfig {
	return AuthConfig{
		JWTSecret:              s.JWTSecret,
		AllowLegacyActorHeader: s.AllowLegacyActorHeader,
	}
}
