package shopapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker guarding the API.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears closed-state counts; zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureRatio of failed to total requests that trips the breaker.
	FailureRatio float64
	// MinRequests observed before FailureRatio is evaluated.
	MinRequests uint32
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "shopapi",
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      15 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func newBreaker(cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	if cfg == (BreakerConfig{}) {
		cfg = DefaultBreakerConfig()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// A caller giving up is not evidence of an unhealthy server.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[*http.Response](settings)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
