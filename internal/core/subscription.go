package core

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Handler receives the notifications of one subscription.
// Callbacks for a subscription run sequentially on its own goroutine.
type Handler struct {
	OnMessage      func(Message)
	OnDisconnected func(error)
}

type delivery struct {
	msg  Message
	term error
}

// Subscription is a registered consumer of the feed.
type Subscription struct {
	ID string

	feed    *Feed
	handler Handler

	mu      sync.Mutex // guards queue, lastID, stopped
	cond    *sync.Cond
	queue   []delivery
	lastID  int64
	stopped bool

	closed  atomic.Bool
	deliver sync.Mutex // held while a callback runs
	done    chan struct{}
}

func newSubscription(id string, f *Feed, h Handler) *Subscription {
	s := &Subscription{
		ID:      id,
		feed:    f,
		handler: h,
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Done is closed once the subscription delivers nothing more.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops deliveries without waiting for an in-flight callback.
// It is safe to call from inside a handler.
func (s *Subscription) Cancel() {
	if s.stop() {
		s.feed.remove(s)
	}
}

// stop marks the subscription silent. Returns true on the first call.
func (s *Subscription) stop() bool {
	if s.closed.Swap(true) {
		return false
	}
	s.mu.Lock()
	s.stopped = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	return true
}

// wait blocks until no callback is running. After stop, none will start again.
func (s *Subscription) wait() {
	s.deliver.Lock()
	s.deliver.Unlock()
}

// enqueue queues a message unless it was already queued. Messages must arrive in id order.
func (s *Subscription) enqueue(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || msg.ID <= s.lastID {
		return false
	}
	s.lastID = msg.ID
	s.queue = append(s.queue, delivery{msg: msg})
	s.cond.Signal()
	return true
}

// terminate queues the terminal signal after everything already queued.
func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.queue = append(s.queue, delivery{term: err})
	s.cond.Signal()
}

func (s *Subscription) next() (delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return delivery{}, false
	}
	d := s.queue[0]
	s.queue[0] = delivery{}
	s.queue = s.queue[1:]
	return d, true
}

func (s *Subscription) run() {
	defer close(s.done)

	for {
		d, ok := s.next()
		if !ok {
			return
		}
		if !s.dispatch(d) {
			return
		}
	}
}

// dispatch invokes the handler for d. Returns false when the subscription is finished.
func (s *Subscription) dispatch(d delivery) (ok bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	if s.closed.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			s.feed.log.Error().
				Str("subscription_id", s.ID).
				Err(fmt.Errorf("handler panic: %v", r)).
				Msg("subscription handler panicked, cancelling")
			s.stop()
			s.feed.remove(s)
			ok = false
		}
	}()

	if d.term != nil {
		s.closed.Store(true)
		if s.handler.OnDisconnected != nil {
			s.handler.OnDisconnected(d.term)
		}
		return false
	}

	if s.handler.OnMessage != nil {
		s.handler.OnMessage(d.msg)
	}
	return true
}
