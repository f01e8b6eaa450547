package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using `env`
// tags. Defaults come from `envDefault`; list values split on `envSeparator`.
//
// Example:
//
//	type Config struct {
//	    Port    int      `env:"HTTP_PORT" envDefault:"8080"`
//	    Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
