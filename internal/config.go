package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	DebugPort int    `env:"DEBUG_PORT,default=6060"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`

	BufferSize           int    `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxContentLength     int    `env:"MAX_CONTENT_LENGTH,default=2000"`
	CharReplacement      string `env:"CHARACTER_REPLACEMENT,default=*"`

	RoomGracePeriod   time.Duration `env:"ROOM_GRACE_PERIOD,default=30s"`
	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL,default=10s"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=60s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval time.Duration `env:"PING_INTERVAL,default=20s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
