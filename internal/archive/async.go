package archive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Async runs an Archiver out of band so callers never wait on storage.
type Async struct {
	next    Archiver
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewAsync wraps next. Each record gets its own timeout, detached from the
// caller's context.
func NewAsync(next Archiver, timeout time.Duration, logger zerolog.Logger) *Async {
	return &Async{
		next:    next,
		timeout: timeout,
		logger:  logger.With().Str("component", "async-archive").Logger(),
	}
}

// Archive schedules rec and returns immediately.
func (a *Async) Archive(_ context.Context, rec Record) error {
	rec.Body = append([]byte(nil), rec.Body...)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.next.Archive(ctx, rec); err != nil {
			a.logger.Warn().Err(err).Str("request_id", rec.RequestID).Msg("webhook archive failed")
		}
	}()
	return nil
}

// Close waits for in-flight records or until ctx is done.
func (a *Async) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
