package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Unbounded as MaxRetries keeps retrying until the operation succeeds or the
// context is cancelled.
const Unbounded = -1

// ErrExhausted is wrapped around the last operation error when the retry bound is reached.
var ErrExhausted = goerr.New("retry attempts exhausted")

type Operation = func(ctx context.Context) error

// Notify is called after a failed attempt and before the backoff wait.
type Notify = func(ctx context.Context, attempt int, err error)

type Config struct {
	MaxRetries    int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:    5,
		BackoffFactor: 2.15,
		InitialDelay:  300 * time.Millisecond,
		MaxDelay:      20 * time.Second,
		Jitter:        50 * time.Millisecond,
	}
}

type Retrier struct {
	config *Config
	notify Notify
}

type Option func(*Retrier)

// WithNotify sets a hook called on every failed attempt
func WithNotify(fn Notify) Option {
	return func(r *Retrier) {
		r.notify = fn
	}
}

func NewRetrier(config *Config, opts ...Option) *Retrier {
	if config == nil {
		config = NewDefaultConfig()
	}
	r := &Retrier{config: config}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs op until it returns nil. With MaxRetries = n the operation runs at
// most n+1 times; the final error wraps ErrExhausted.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	delay := r.config.InitialDelay
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if r.config.MaxRetries != Unbounded && attempt >= r.config.MaxRetries {
			return goerr.Wrap(ErrExhausted, err.Error(),
				goerr.V("attempts", attempt+1),
				goerr.V("cause", err),
			)
		}

		if r.notify != nil {
			r.notify(ctx, attempt+1, err)
		}

		var jitter time.Duration
		if r.config.Jitter > 0 {
			jitter = time.Duration(rnd.Float64() * float64(r.config.Jitter))
		}
		nextDelay := delay + jitter
		if r.config.MaxDelay > 0 && nextDelay > r.config.MaxDelay {
			nextDelay = r.config.MaxDelay + jitter
		}

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "retry interrupted", goerr.V("attempts", attempt+1))
		case <-time.After(nextDelay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}
