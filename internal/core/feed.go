package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-feed/internal/store"
	"github.com/vovakirdan/wirechat-feed/internal/utils"
)

// DefaultReplayBatchSize is the page size used to replay history on subscribe.
const DefaultReplayBatchSize = 256

// Feed serializes appends to the message store and fans them out to subscribers.
//
// The same lock covers an append plus its notification, and a subscriber's
// history replay plus its registration, so every subscriber observes one
// total order with no message skipped or delivered twice.
type Feed struct {
	store store.MessageStore
	log   *zerolog.Logger
	batch int

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// NewFeed creates a feed over st. A nil logger discards output;
// replayBatch <= 0 selects DefaultReplayBatchSize.
func NewFeed(st store.MessageStore, logger *zerolog.Logger, replayBatch int) *Feed {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if replayBatch <= 0 {
		replayBatch = DefaultReplayBatchSize
	}
	return &Feed{
		store: st,
		log:   logger,
		batch: replayBatch,
		subs:  make(map[string]*Subscription),
	}
}

// Append stores a message and queues it for every active subscriber.
func (f *Feed) Append(ctx context.Context, author, text string, imageURL *string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Message{}, ErrFeedClosed
	}

	stored, err := f.store.Append(ctx, author, text, imageURL)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			f.disconnectLocked(err)
		}
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	msg := messageFromStore(stored)
	for _, sub := range f.subs {
		sub.enqueue(msg)
	}

	f.log.Debug().Int64("message_id", msg.ID).Str("from", msg.From).Int("subscribers", len(f.subs)).Msg("message appended")
	return msg, nil
}

// Subscribe replays the current history to h in append order, then delivers
// every later append exactly once until the subscription ends.
func (f *Feed) Subscribe(ctx context.Context, h Handler) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	sub := newSubscription(utils.NewID(), f, h)

	var after *int64
	replayed := 0
	for {
		page, err := f.store.Range(ctx, after, f.batch)
		if err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				f.disconnectLocked(err)
			}
			return nil, fmt.Errorf("replay history: %w", err)
		}
		for _, m := range page {
			sub.enqueue(messageFromStore(m))
		}
		replayed += len(page)
		if len(page) < f.batch {
			break
		}
		last := page[len(page)-1].ID
		after = &last
	}

	f.subs[sub.ID] = sub
	go sub.run()

	f.log.Debug().Str("subscription_id", sub.ID).Int("replayed", replayed).Msg("subscriber registered")
	return sub, nil
}

// Unsubscribe stops sub and waits for a callback in flight to return.
// After it returns the handler is never invoked again.
// It must not be called from inside that subscription's handler; use Cancel there.
func (f *Feed) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Cancel()
	sub.wait()
}

// Disconnect delivers a terminal DisconnectedError to every active subscriber
// and drops them. It returns the number of subscribers signalled.
func (f *Feed) Disconnect(cause error) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnectLocked(cause)
}

func (f *Feed) disconnectLocked(cause error) int {
	n := len(f.subs)
	if n == 0 {
		return 0
	}

	signal := &DisconnectedError{Cause: cause}
	for id, sub := range f.subs {
		sub.terminate(signal)
		delete(f.subs, id)
	}

	f.log.Warn().Err(cause).Int("subscribers", n).Msg("feed disconnected")
	return n
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Run checks the store every interval and disconnects subscribers when a check fails.
// It blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := f.store.Ping(pingCtx)
			cancel()

			switch {
			case err != nil && ctx.Err() == nil:
				if healthy {
					f.log.Warn().Err(err).Msg("message store health check failed")
				}
				healthy = false
				f.Disconnect(err)
			case err == nil && !healthy:
				healthy = true
				f.log.Info().Msg("message store reachable again")
			}
		}
	}
}

// Close cancels every subscription without a disconnect signal and rejects further use.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for id, sub := range f.subs {
		sub.stop()
		delete(f.subs, id)
	}
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cur, ok := f.subs[sub.ID]; ok && cur == sub {
		delete(f.subs, sub.ID)
	}
}
