package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/dosewatch/internal/testreadings"
)

// Default configuration constants.
const (
	defaultSubjects    = 10
	defaultReadings    = 20
	defaultWorkers     = 4
	defaultInterval    = 50 * time.Millisecond
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		addr     = flag.String("addr", "localhost:5005", "TCP address of the receiver")
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the operator API")
		subjects = flag.Int("subjects", defaultSubjects, "Number of synthetic subjects to register")
		readings = flag.Int("readings", defaultReadings, "Number of dose readings to stream per subject")
		workers  = flag.Int("workers", defaultWorkers, "Number of concurrent streaming connections")
		interval = flag.Duration("interval", defaultInterval, "Delay between readings on one connection")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testreadings.ShowHelp()
		return
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := testreadings.SetupLogging(level); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testreadings.Config{
		Addr:        *addr,
		BaseURL:     *baseURL,
		NumSubjects: *subjects,
		NumReadings: *readings,
		Workers:     *workers,
		Interval:    *interval,
		Timeout:     *timeout,
		Verbose:     *verbose,
	}

	if err := testreadings.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
