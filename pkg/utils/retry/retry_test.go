package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/utils/retry"
)

func fastConfig(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries:    maxRetries,
		BackoffFactor: 2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	}
}

func TestDoSuccessOnFirstTry(t *testing.T) {
	counter := 0
	err := retry.NewRetrier(fastConfig(3)).Do(context.Background(), func(ctx context.Context) error {
		counter++
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, counter, 1)
}

func TestDoSuccessAfterFailures(t *testing.T) {
	counter := 0
	var notified []int
	r := retry.NewRetrier(fastConfig(3), retry.WithNotify(func(ctx context.Context, attempt int, err error) {
		notified = append(notified, attempt)
	}))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		counter++
		if counter <= 2 {
			return goerr.New("temporary error")
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, counter, 3)
	gt.Equal(t, notified, []int{1, 2})
}

func TestDoExhausted(t *testing.T) {
	counter := 0
	permanent := goerr.New("permanent error")
	err := retry.NewRetrier(fastConfig(2)).Do(context.Background(), func(ctx context.Context) error {
		counter++
		return permanent
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, retry.ErrExhausted))
	gt.S(t, err.Error()).Contains("permanent error")
	gt.Equal(t, counter, 3)
}

func TestDoUnbounded(t *testing.T) {
	counter := 0
	err := retry.NewRetrier(fastConfig(retry.Unbounded)).Do(context.Background(), func(ctx context.Context) error {
		counter++
		if counter < 10 {
			return goerr.New("flaky")
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, counter, 10)
}

func TestDoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(retry.Unbounded)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	counter := 0
	err := retry.NewRetrier(cfg).Do(ctx, func(ctx context.Context) error {
		counter++
		cancel()
		return goerr.New("fails")
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))
	gt.Equal(t, counter, 1)
}
