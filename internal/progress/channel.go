package progress

import (
	"sync"
	"sync/atomic"
)

// Poster marshals a function onto the observer goroutine.
// *eventloop.Loop satisfies it.
type Poster interface {
	Post(fn func()) bool
}

// Observer receives snapshots on the observer goroutine
type Observer func(Snapshot)

// Channel carries progress from the one goroutine executing a task to
// any number of observers. Readers never block the publisher: the latest
// snapshot is held in an atomic pointer, and each subscriber only sees
// the newest snapshot available when its delivery runs.
type Channel struct {
	latest atomic.Pointer[Snapshot]
	seq    atomic.Uint64

	mu     sync.Mutex
	subs   atomic.Pointer[[]*subscription]
	nextID uint64
}

// NewChannel creates a channel holding an empty snapshot
func NewChannel() *Channel {
	c := &Channel{}
	initial := Snapshot{}
	c.latest.Store(&initial)
	empty := []*subscription{}
	c.subs.Store(&empty)
	return c
}

// Publish stores s as the latest snapshot and schedules delivery to every
// subscriber. It returns s with its sequence number assigned.
func (c *Channel) Publish(s Snapshot) Snapshot {
	s.Seq = c.seq.Add(1)
	c.latest.Store(&s)

	for _, sub := range *c.subs.Load() {
		sub.offer(&s)
	}
	return s
}

// Latest returns the most recently published snapshot
func (c *Channel) Latest() Snapshot {
	return *c.latest.Load()
}

// Subscribe registers observer; deliveries run through poster. The
// current snapshot is delivered first if anything has been published.
// The returned func stops further deliveries.
func (c *Channel) Subscribe(observer Observer, poster Poster) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	sub := &subscription{id: c.nextID, observer: observer, poster: poster}
	old := *c.subs.Load()
	next := make([]*subscription, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, sub)
	c.subs.Store(&next)
	c.mu.Unlock()

	if cur := c.latest.Load(); cur.Seq > 0 {
		sub.offer(cur)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.closed.Store(true)
			c.remove(sub.id)
		})
	}
}

func (c *Channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := *c.subs.Load()
	next := make([]*subscription, 0, len(old))
	for _, s := range old {
		if s.id != id {
			next = append(next, s)
		}
	}
	c.subs.Store(&next)
}

type subscription struct {
	id       uint64
	observer Observer
	poster   Poster

	pending   atomic.Pointer[Snapshot]
	scheduled atomic.Bool
	closed    atomic.Bool

	// touched only on the observer goroutine
	delivered uint64
}

// offer replaces the pending snapshot and posts a drain unless one is
// already queued. A queued drain always picks up the newest pending value,
// so the last publication is never lost.
func (s *subscription) offer(snap *Snapshot) {
	for {
		cur := s.pending.Load()
		if cur != nil && cur.Seq >= snap.Seq {
			break
		}
		if s.pending.CompareAndSwap(cur, snap) {
			break
		}
	}
	if s.scheduled.CompareAndSwap(false, true) {
		if !s.poster.Post(s.drain) {
			s.scheduled.Store(false)
		}
	}
}

func (s *subscription) drain() {
	s.scheduled.Store(false)
	snap := s.pending.Swap(nil)
	if snap == nil || s.closed.Load() || snap.Seq <= s.delivered {
		return
	}
	s.delivered = snap.Seq
	s.observer(*snap)
}
