package publish

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/signalpress/signalpress/internal/metrics"
	"github.com/signalpress/signalpress/pkg/contracts"
	"github.com/signalpress/signalpress/pkg/models"
)

// RetryConfig mirrors spec.md §6.4's retry.* options.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 4 * time.Second, CapDelay: 10 * time.Second}
}

// CircuitConfig mirrors spec.md §6.4's circuit.* options.
type CircuitConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
}

// DeadLetter is one entry handed off when a publish terminally fails.
type DeadLetter struct {
	Artifact  models.ContentArtifact
	Channel   string
	LastError string
	Attempts  int
	Timestamp time.Time
}

// DeadLetterQueue is the out-of-band recovery channel terminal
// failures are enqueued to. The Orchestrator is never blocked on it.
type DeadLetterQueue interface {
	Enqueue(DeadLetter)
}

// nonRetryableErrors are error tags spec.md §7 marks as never retried.
var nonRetryableErrors = map[string]bool{
	"validation_error":    true,
	"backend_4xx":         true,
	"dry_run_mismatch":    true,
}

// retryableOn408_425_429 are the 4xx-class tags that ARE retried
// despite being client errors, per spec.md §4.3.
var retryableOn408_425_429 = map[string]bool{
	"408": true, "425": true, "429": true, "rate_limited": true,
}

func isRetryable(tag string) bool {
	if nonRetryableErrors[tag] {
		return false
	}
	if retryableOn408_425_429[tag] {
		return true
	}
	// transport_error, backend_5xx, and anything unrecognized default
	// to retryable (matches spec's "retryable: transport errors, 5xx
	// responses, 429 responses").
	return true
}

// ResilientPublisher wraps a Publisher with uniform retry, circuit
// breaking, and dead-letter hand-off, per spec.md §4.3. One instance
// owns exactly one channel's CircuitState; it is safe for concurrent
// use by multiple orchestrator runs.
type ResilientPublisher struct {
	inner   contracts.Publisher
	breaker *gobreaker.CircuitBreaker[models.ChannelResult]
	retry   RetryConfig
	dlq     DeadLetterQueue
}

// newBackOff builds a fresh per-attempt-sequence backoff.ExponentialBackOff
// for retry. In backoff/v5 the ExponentialBackOff itself has no
// elapsed-time cap; attempt counting bounds the retry loop here.
func newBackOff(retry RetryConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retry.BaseDelay
	b.MaxInterval = retry.CapDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

// NewResilientPublisher wraps inner with the given retry/circuit
// configuration. dlq may be nil (dead-lettering becomes a no-op).
func NewResilientPublisher(inner contracts.Publisher, retry RetryConfig, circuit CircuitConfig, dlq DeadLetterQueue) *ResilientPublisher {
	settings := gobreaker.Settings{
		Name:        inner.Channel(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     circuit.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= uint32(circuit.FailureThreshold) {
				return true
			}
			if counts.Requests >= 20 {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= 0.5
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.CircuitStateValue(to.String()))
		},
	}

	return &ResilientPublisher{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[models.ChannelResult](settings),
		retry:   retry,
		dlq:     dlq,
	}
}

func (p *ResilientPublisher) Channel() string { return p.inner.Channel() }

// CircuitState reports this channel's current breaker state as a
// models.CircuitStateKind ("closed", "half_open", "open"), for
// Health/Ready aggregate checks (spec.md §6.1).
func (p *ResilientPublisher) CircuitState() string {
	switch p.breaker.State() {
	case gobreaker.StateOpen:
		return string(models.CircuitOpen)
	case gobreaker.StateHalfOpen:
		return string(models.CircuitHalfOpen)
	default:
		return string(models.CircuitClosed)
	}
}

func (p *ResilientPublisher) Limits() models.ChannelLimits { return p.inner.Limits() }

func (p *ResilientPublisher) Validate(artifact models.ContentArtifact) []string {
	return p.inner.Validate(artifact)
}

func (p *ResilientPublisher) Preview(ctx context.Context, artifact models.ContentArtifact) (models.ChannelResult, error) {
	return p.inner.Preview(ctx, artifact)
}

// Publish performs dry-run pass-through, or drives the retry/circuit
// loop for a real send.
func (p *ResilientPublisher) Publish(ctx context.Context, artifact models.ContentArtifact, dryRun bool) (models.ChannelResult, error) {
	if dryRun {
		return p.inner.Publish(ctx, artifact, true)
	}

	maxAttempts := p.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	bo := newBackOff(p.retry)

	var lastResult models.ChannelResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := p.breaker.Execute(func() (models.ChannelResult, error) {
			return p.inner.Publish(ctx, artifact, false)
		})

		if errors.Is(err, gobreaker.ErrOpenState) {
			failed := models.ChannelResult{
				Channel:   p.Channel(),
				Status:    models.ChannelFailed,
				Error:     "circuit_open",
				Timestamp: time.Now().UTC(),
				Attempts:  1,
			}
			p.deadLetter(artifact, failed, attempt)
			return failed, nil
		}

		result.Attempts = attempt
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now().UTC()
		}
		lastResult = result

		if err == nil && result.Status == models.ChannelSuccess {
			return result, nil
		}

		if !isRetryable(result.Error) || attempt == maxAttempts {
			p.deadLetter(artifact, result, attempt)
			return result, nil
		}

		select {
		case <-ctx.Done():
			lastResult.Error = "cancelled"
			lastResult.Status = models.ChannelFailed
			return lastResult, nil
		case <-time.After(bo.NextBackOff()):
		}
	}

	return lastResult, nil
}

func (p *ResilientPublisher) deadLetter(artifact models.ContentArtifact, result models.ChannelResult, attempts int) {
	metrics.DeadLettersTotal.WithLabelValues(p.Channel()).Inc()
	if p.dlq == nil {
		return
	}
	p.dlq.Enqueue(DeadLetter{
		Artifact:  artifact,
		Channel:   p.Channel(),
		LastError: result.Error,
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
	})
}
