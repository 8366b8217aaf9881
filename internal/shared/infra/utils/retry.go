package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffPolicy define reintentos acotados con espera exponencial.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0 = sin aleatoriedad
}

// NewBackOff crea el generador de esperas para una ejecución.
func (p BackoffPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// Sleep espera d o hasta que ctx se cancele.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry ejecuta fn hasta MaxAttempts veces mientras shouldRetry(err) sea true.
// Devuelve el número de intentos realizados y el último error.
func Retry(ctx context.Context, p BackoffPolicy, shouldRetry func(error) bool, fn func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := p.NewBackOff()

	var err error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !shouldRetry(err) || attempt == maxAttempts {
			break
		}
		if sleepErr := Sleep(ctx, b.NextBackOff()); sleepErr != nil {
			return attempt, err
		}
	}
	return attempt, err
}
