package retrypolicy

//go:generate mockgen -source=retrypolicy.go -destination=mock/mock.go -package=mock_retrypolicy

import (
	"errors"
	"math"
	"time"
)

// Done is returned by CalculateNextDelay once no further attempt should be made
const Done time.Duration = -1

var (
	// ErrInvalidCoefficient is returned for a backoff coefficient below one
	ErrInvalidCoefficient = errors.New("retrypolicy: backoff coefficient must be at least 1")
	// ErrInvalidAttempts is returned for a negative maximum attempts
	ErrInvalidAttempts = errors.New("retrypolicy: maximum attempts must not be negative")
)

// Retry calculates the delay before the next attempt of an operation
type Retry interface {
	CalculateNextDelay() time.Duration
}

// Option configures a policy
type Option func(p *policy) error

type policy struct {
	currentAttempt     int
	maximumAttempt     int
	initialInterval    time.Duration
	backoffCoefficient float64
	maximumInterval    time.Duration
	expirationInterval time.Duration
	startTime          time.Time
}

// New creates a retry policy. Without options it never retries.
func New(opts ...Option) (Retry, error) {
	p := &policy{
		backoffCoefficient: 1,
		startTime:          time.Now(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Constant returns a policy allowing attempts retries, each after the same interval
func Constant(interval time.Duration, attempts int) (Retry, error) {
	return New(
		WithInitialInterval(interval),
		WithMaximumAttempts(attempts),
	)
}

// WithInitialInterval sets the delay before the first retry
func WithInitialInterval(d time.Duration) Option {
	return func(p *policy) error {
		p.initialInterval = d
		return nil
	}
}

// WithBackoffCoefficient sets the multiplier applied to the interval after every retry
func WithBackoffCoefficient(c float64) Option {
	return func(p *policy) error {
		if c < 1 {
			return ErrInvalidCoefficient
		}
		p.backoffCoefficient = c
		return nil
	}
}

// WithMaximumInterval caps the interval between retries
func WithMaximumInterval(d time.Duration) Option {
	return func(p *policy) error {
		p.maximumInterval = d
		return nil
	}
}

// WithExpirationInterval bounds the total time spent retrying
func WithExpirationInterval(d time.Duration) Option {
	return func(p *policy) error {
		p.expirationInterval = d
		return nil
	}
}

// WithMaximumAttempts bounds the number of retries
func WithMaximumAttempts(n int) Option {
	return func(p *policy) error {
		if n < 0 {
			return ErrInvalidAttempts
		}
		p.maximumAttempt = n
		return nil
	}
}

// CalculateNextDelay returns the delay before the next retry or Done
func (p *policy) CalculateNextDelay() time.Duration {
	if p.currentAttempt >= p.maximumAttempt {
		return Done
	}

	if p.expirationInterval > 0 && time.Since(p.startTime) > p.expirationInterval {
		return Done
	}

	next := float64(p.initialInterval) * math.Pow(p.backoffCoefficient, float64(p.currentAttempt))
	if p.maximumInterval > 0 && next > float64(p.maximumInterval) {
		next = float64(p.maximumInterval)
	}

	if next <= 0 {
		return Done
	}

	p.currentAttempt++

	return time.Duration(next)
}
