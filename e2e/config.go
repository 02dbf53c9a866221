package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_LOG_LEVEL keeps the in-process relay quiet unless debugging
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours        bool          `envconfig:"E2E_COLOURS" default:"true"`
	ConnectTimeout time.Duration `envconfig:"E2E_CONNECT_TIMEOUT" default:"5s"`
	EventTimeout   time.Duration `envconfig:"E2E_EVENT_TIMEOUT" default:"3s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
