package testreadings

import (
	"fmt"
	"os"

	"github.com/okian/dosewatch/pkg/logger"
)

// SetupLogging initializes the shared logger for the tool.
func SetupLogging(level string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if level != "" {
		if err := logger.SetLevelString(level); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
	}
	return nil
}

// ShowHelp prints usage information for the reading test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Dosewatch Reading Test Tool
===========================

Registers synthetic subjects and streams pill-bottle scale readings at a
running dosewatch instance.

Usage:
  go run cmd/send-readings/main.go [options]

Options:
  -addr string
        TCP address of the receiver (default "localhost:5005")
  -url string
        Base URL of the operator API (default "http://localhost:9080")
  -subjects int
        Number of synthetic subjects to register (default 10)
  -readings int
        Number of dose readings to stream per subject (default 20)
  -workers int
        Number of concurrent streaming connections (default 4)
  -interval duration
        Delay between readings on one connection (default 50ms)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Exercise a local instance with defaults
  go run cmd/send-readings/main.go

  # Larger run against a remote instance
  go run cmd/send-readings/main.go -addr 10.0.0.5:5005 -url http://10.0.0.5:9080 -subjects 100 -readings 50
`)
}
