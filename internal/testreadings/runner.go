package testreadings

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/dosewatch/pkg/logger"
)

// Run executes the complete synthetic reading run: register subjects over
// the operator API, stream their scale readings over TCP, then read the
// resulting adherence scores back.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting dosewatch reading test",
		logger.String("addr", config.Addr),
		logger.String("baseURL", config.BaseURL),
		logger.Int("subjects", config.NumSubjects),
		logger.Int("readings", config.NumReadings),
		logger.Int("workers", config.Workers),
		logger.String("interval", config.Interval.String()),
	)

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register synthetic subjects
	subjects, err := registerSubjects(ctx, client, config, stats)
	if err != nil {
		return fmt.Errorf("subject registration failed: %w", err)
	}

	// Step 3: Stream readings concurrently
	if err := streamReadings(ctx, config, subjects, stats); err != nil {
		return fmt.Errorf("reading stream failed: %w", err)
	}

	// Step 4: Read scores back
	if err := reportScores(ctx, client, subjects); err != nil {
		logger.Get().Warn(ctx, "score report failed", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *resty.Client) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode())
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// registerSubjects creates the synthetic subjects through the operator API
// and pre-generates each one's reading sequence.
func registerSubjects(ctx context.Context, client *resty.Client, config *Config, stats *Stats) ([]Subject, error) {
	subjects := make([]Subject, 0, config.NumSubjects)

	for i := 0; i < config.NumSubjects; i++ {
		s := generateSubject()

		var created struct {
			SubjectID int64 `json:"subjectId"`
		}
		resp, err := client.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"firstName":  s.FirstName,
				"lastName":   s.LastName,
				"pillWeight": s.PillWeight,
				"prescription": map[string]int{
					"pillsPerDose": s.PillsPerDose,
					"pillCount":    s.PillCount,
				},
				"dosingWindows": s.DosingWindows,
			}).
			SetResult(&created).
			Post("/subjects")
		if err != nil {
			return nil, fmt.Errorf("create subject %d: %w", i, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("create subject %d: status %d: %s", i, resp.StatusCode(), resp.String())
		}

		s.ID = created.SubjectID
		s.Readings = generateReadings(s, config.NumReadings)
		subjects = append(subjects, s)
		stats.SubjectsCreated++

		if config.Verbose {
			logger.Get().Info(ctx, "registered subject",
				logger.Int64("subjectID", s.ID),
				logger.Int("pillsPerDose", s.PillsPerDose),
				logger.Float64("gramsPerPill", s.PillWeight),
				logger.Int("windows", len(s.DosingWindows)),
			)
		}
	}

	logger.Get().Info(ctx, "registered subjects", logger.Int("count", len(subjects)))
	return subjects, nil
}

// streamReadings opens one pinned TCP connection per subject and replays
// its reading sequence, at most config.Workers connections at a time.
func streamReadings(ctx context.Context, config *Config, subjects []Subject, stats *Stats) error {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, config.Workers)
	)

	for i := range subjects {
		s := subjects[i]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			sent, err := streamOne(ctx, config, s)
			mu.Lock()
			stats.ReadingsSent += sent
			if err != nil {
				stats.SendFailures++
			}
			mu.Unlock()

			if err != nil {
				logger.Get().Error(ctx, "stream failed",
					logger.Int64("subjectID", s.ID),
					logger.Error(err),
				)
			}
		}()
	}

	wg.Wait()
	return nil
}

// streamOne replays one subject's readings over a single connection.
func streamOne(ctx context.Context, config *Config, s Subject) (int, error) {
	conn, err := net.Dial("tcp", config.Addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", config.Addr, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := fmt.Fprintf(conn, "subject %d\n", s.ID); err != nil {
		return 0, fmt.Errorf("pin subject: %w", err)
	}

	sent := 0
	for _, grams := range s.Readings {
		select {
		case <-ctx.Done():
			return sent, fmt.Errorf("stream cancelled: %w", ctx.Err())
		default:
		}

		if _, err := fmt.Fprintf(conn, "%.3f\n", grams); err != nil {
			return sent, fmt.Errorf("send reading: %w", err)
		}
		sent++

		if config.Interval > 0 {
			time.Sleep(config.Interval)
		}
	}

	return sent, nil
}

// reportScores reads each subject's final adherence score back through the
// operator API.
func reportScores(ctx context.Context, client *resty.Client, subjects []Subject) error {
	for _, s := range subjects {
		var got struct {
			CurrAdherenceScore int `json:"currAdherenceScore"`
		}
		resp, err := client.R().
			SetContext(ctx).
			SetResult(&got).
			Get(fmt.Sprintf("/subjects/%d", s.ID))
		if err != nil {
			return fmt.Errorf("fetch subject %d: %w", s.ID, err)
		}
		if resp.IsError() {
			return fmt.Errorf("fetch subject %d: status %d", s.ID, resp.StatusCode())
		}

		logger.Get().Info(ctx, "final adherence score",
			logger.Int64("subjectID", s.ID),
			logger.Int("score", got.CurrAdherenceScore),
		)
	}
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var readingsPerSecond float64
	if stats.Duration > 0 {
		readingsPerSecond = float64(stats.ReadingsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("subjectsCreated", stats.SubjectsCreated),
		logger.Int("readingsSent", stats.ReadingsSent),
		logger.Int("sendFailures", stats.SendFailures),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("readingsPerSecond", readingsPerSecond),
	)
}
