package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// StartPoller launches a goroutine that calls session.Refresh every interval
// until ctx is cancelled. Consecutive failures stretch the wait with
// calculateBackoff. It returns immediately.
func StartPoller(ctx context.Context, session *Session, interval time.Duration, log zerolog.Logger) {
	go Poll(ctx, session, interval, log)
}

// Poll is the blocking body of StartPoller.
func Poll(ctx context.Context, session *Session, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := session.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			wait := calculateBackoff(failures, interval)
			log.Warn().Err(err).Int("failures", failures).Dur("next", wait).Msg("poll failed")
			timer.Reset(wait)
			continue
		}
		if failures > 0 {
			log.Info().Int("failures", failures).Msg("poll recovered")
		}
		failures = 0
		timer.Reset(interval)
	}
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
