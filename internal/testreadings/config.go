package testreadings

import "time"

// Config holds configuration for the synthetic reading run.
type Config struct {
	Addr         string        // TCP address of the receiver
	BaseURL      string        // Base URL of the operator API
	NumSubjects  int           // Number of synthetic subjects to register
	NumReadings  int           // Readings to stream per subject
	Workers      int           // Number of concurrent streaming connections
	Interval     time.Duration // Delay between readings on one connection
	Timeout      time.Duration // HTTP request timeout
	Verbose      bool          // Enable verbose logging
}

// Subject is a synthetic subject plus the reading sequence its scale
// would produce.
type Subject struct {
	ID            int64
	FirstName     string
	LastName      string
	PillWeight    float64
	PillsPerDose  int
	PillCount     int
	DosingWindows map[string]string
	Readings      []float64
}

// Stats holds run statistics.
type Stats struct {
	SubjectsCreated int
	ReadingsSent    int
	SendFailures    int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
