package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_BASE_URL points at a running server, the suite is skipped when empty
	BaseURL string `envconfig:"E2E_BASE_URL"`
	// E2E_DEBUG_JSON dumps response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_EXPIRY_WAIT is how long to stay silent before checking the eviction,
	// at least EXPIRY_WINDOW plus SWEEP_PERIOD of the server. Zero skips that step.
	ExpiryWait time.Duration `envconfig:"E2E_EXPIRY_WAIT" default:"0s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
