// Package helpers contains shared flag plumbing for CLI commands.
package helpers

import (
	"github.com/spf13/pflag"

	"github.com/refract-dev/refract/internal/logging"
)

// LogFlags holds the flag values controlling logger construction.
type LogFlags struct {
	Level  string
	Pretty bool
}

// AddFlags adds logging flags to a FlagSet.
func (f *LogFlags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.Level, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&f.Pretty, "log-pretty", true, "Human-readable log output")
}

// Config returns the logging configuration selected by the flags.
func (f *LogFlags) Config() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = f.Level
	cfg.Pretty = f.Pretty
	return cfg
}
