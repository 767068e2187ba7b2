package core

import (
	"fmt"
	"strings"
)

type TranscriptConfig struct {
	Enabled  bool `koanf:"enabled" mapstructure:"enabled"`
	MaxBytes int  `koanf:"max_bytes" mapstructure:"max_bytes"`
}

// TransportConfig shapes the REST client built by transport.FromConfig. The
// timeout also bounds each service operation.
type TransportConfig struct {
	TimeoutSeconds   int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxResponseBytes int64  `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
	UserAgent        string `koanf:"user_agent" mapstructure:"user_agent"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	TestMode    bool             `koanf:"test_mode" mapstructure:"test_mode"`
	Transcripts TranscriptConfig `koanf:"transcripts" mapstructure:"transcripts"`
	Transport   TransportConfig  `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "gateways",
		TestMode:    false,
		Transcripts: TranscriptConfig{
			Enabled:  false,
			MaxBytes: 64 * 1024,
		},
		Transport: TransportConfig{
			TimeoutSeconds:   60,
			MaxResponseBytes: 10 << 20,
			UserAgent:        "go-gateways",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Transcripts.MaxBytes < 0 {
		return fmt.Errorf("core: transcripts.max_bytes must not be negative")
	}
	if c.Transport.TimeoutSeconds < 0 {
		return fmt.Errorf("core: transport.timeout_seconds must not be negative")
	}
	if c.Transport.MaxResponseBytes < 0 {
		return fmt.Errorf("core: transport.max_response_bytes must not be negative")
	}
	return nil
}
