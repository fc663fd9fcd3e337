package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"bpdiary/internal/domain"
	"bpdiary/internal/logger"

	"go.uber.org/zap"
)

const (
	minFeedBackoff = time.Second
	maxFeedBackoff = 30 * time.Second
)

// Subscription feeds one health feed into a ReadingIndex until cancelled.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	anchor string
}

// Subscribe starts consuming feed from q and applying each batch to ix in
// delivery order. Feed errors are logged and retried with exponential
// backoff from the last applied anchor.
func (ix *ReadingIndex) Subscribe(ctx context.Context, feed domain.HealthFeed, q domain.FeedQuery, log *zap.Logger) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{cancel: cancel, done: make(chan struct{}), anchor: q.Anchor}
	go s.run(ctx, ix, feed, q, logger.OrNop(log))
	return s
}

func (s *Subscription) run(ctx context.Context, ix *ReadingIndex, feed domain.HealthFeed, q domain.FeedQuery, log *zap.Logger) {
	defer close(s.done)

	backoff := minFeedBackoff
	for ctx.Err() == nil {
		q.Anchor = s.Anchor()
		batch, err := feed.Next(ctx, q)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error("health feed failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFeedBackoff)
			continue
		}
		backoff = minFeedBackoff

		// A batch that arrives after cancellation is dropped.
		if ctx.Err() != nil {
			return
		}
		st := ix.ApplyUpdate(batch)
		s.mu.Lock()
		if batch.Anchor != "" {
			s.anchor = batch.Anchor
		}
		s.mu.Unlock()
		if st.Added > 0 || st.Removed > 0 {
			log.Debug("reading index updated",
				zap.Int("added", st.Added),
				zap.Int("removed", st.Removed),
				zap.String("anchor", batch.Anchor),
			)
		}
	}
}

// Anchor returns the anchor of the last applied batch.
func (s *Subscription) Anchor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// Cancel stops the subscription and waits for its loop to exit. No batch is
// applied after Cancel returns. Calling it again is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// WindowQuery is the feed query covering days calendar days up to and
// including the day of now.
func WindowQuery(now time.Time, days int) domain.FeedQuery {
	if days < 1 {
		days = 1
	}
	return domain.FeedQuery{Since: StartOfDay(now).AddDate(0, 0, -(days - 1))}
}

// CatchUp applies batches from feed until none arrives for idle, then
// returns the last applied anchor. It is the one-shot counterpart of
// Subscribe for short-lived processes.
func (ix *ReadingIndex) CatchUp(ctx context.Context, feed domain.HealthFeed, q domain.FeedQuery, idle time.Duration) (string, error) {
	for {
		nctx, cancel := context.WithTimeout(ctx, idle)
		batch, err := feed.Next(nctx, q)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return q.Anchor, nil
			}
			return q.Anchor, err
		}
		ix.ApplyUpdate(batch)
		if batch.Anchor != "" {
			q.Anchor = batch.Anchor
		}
	}
}
