// Package config handles application configuration and setup
package config

import (
	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/retrogolib/log"
)

// Default values of the program options.
const (
	DefaultFormat = "text"
	DefaultJobs   = 4
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// StateConfig returns the state limits of a platform with the gas budget overridden
// if a budget is set.
func StateConfig(ar arch.Architecture, gas uint64) arch.StateConfig {
	cfg := ar.StateConfig()
	if gas > 0 {
		cfg.Gas = gas
	}
	return cfg
}
