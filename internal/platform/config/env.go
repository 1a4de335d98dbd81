package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Server is the process configuration read from the environment.
// Command-line flags override it.
type Server struct {
	Addr       string `env:"PKWORLD_ADDR" envDefault:":8080"`
	ConfigDir  string `env:"PKWORLD_CONFIG_DIR" envDefault:"./configs"`
	DataDir    string `env:"PKWORLD_DATA_DIR" envDefault:"./data"`
	WorldID    string `env:"PKWORLD_WORLD_ID" envDefault:"world_1"`
	TuningPath string `env:"PKWORLD_TUNING"`
	DisableDB  bool   `env:"PKWORLD_DISABLE_DB"`
	// IndexBackend is "sqlite" or "none".
	IndexBackend string `env:"PKWORLD_INDEX_BACKEND" envDefault:"sqlite"`
	// StrictProtocol validates every outbound message against its schema.
	StrictProtocol bool `env:"PKWORLD_STRICT_PROTOCOL"`
	// EnableAdmin exposes the kill/attack admin endpoints. Non-loopback callers
	// additionally need AdminToken.
	EnableAdmin bool   `env:"PKWORLD_ENABLE_ADMIN_HTTP" envDefault:"true"`
	AdminToken  string `env:"PKWORLD_ADMIN_TOKEN"`
	// OTelEndpoint is an OTLP/HTTP URL; tracing stays off while it is empty.
	OTelEndpoint string `env:"PKWORLD_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"PKWORLD_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
