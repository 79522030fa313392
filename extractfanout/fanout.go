package extractfanout

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/primkey7607/vdms/intervaldecoder"
)

// ExtractJob bundles a source path and the frame indices a worker
// should decode from it. JobID correlates the job with its eventual
// ExtractResult across logs and subscriber dispatch.
type ExtractJob struct {
	JobID  uuid.UUID
	Path   string
	Wanted []uint64
}

// ExtractResult bundles one completed decode run: the frames
// IntervalDecoder.Decode emitted, how long the run took wall-clock, and
// the JobID of the ExtractJob that produced it.
type ExtractResult struct {
	JobID    uuid.UUID
	Frames   []intervaldecoder.DecodedFrame
	Duration time.Duration
}

// Bus distributes ExtractResults to multiple subscribers with a
// drop-on-full policy.
type Bus interface {
	// Subscribe registers a channel to receive results. Returns an
	// error if id already exists or the bus is closed.
	Subscribe(id string, ch chan<- ExtractResult) error

	// Unsubscribe removes a subscriber by id. Returns an error if id is
	// not found or the bus is closed.
	Unsubscribe(id string) error

	// Publish sends result to every subscriber, non-blocking. A
	// subscriber whose channel is full has the result dropped for it
	// and counted, never queued.
	Publish(result ExtractResult)

	// Stats returns a snapshot of publish/delivery/drop counters.
	Stats() BusStats

	// Close stops the bus and prevents further operations. Subsequent
	// Subscribe/Unsubscribe return ErrBusClosed; subsequent Publish
	// panics.
	Close() error
}

var (
	// ErrSubscriberExists is returned when Subscribe is called with a
	// duplicate id.
	ErrSubscriberExists = errors.New("extractfanout: subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with
	// an unknown id.
	ErrSubscriberNotFound = errors.New("extractfanout: subscriber id not found")

	// ErrBusClosed is returned when operations are attempted on a
	// closed bus.
	ErrBusClosed = errors.New("extractfanout: bus is closed")

	// ErrNilChannel is returned when Subscribe is called with a nil
	// channel.
	ErrNilChannel = errors.New("extractfanout: subscriber channel cannot be nil")
)

// BusStats contains global and per-subscriber delivery metrics.
type BusStats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// SubscriberStats tracks delivery metrics for a single subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriberStats struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

type bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan<- ExtractResult
	stats       map[string]*subscriberStats
	closed      bool

	totalPublished atomic.Uint64
}

// New creates a new Bus.
func New() Bus {
	return &bus{
		subscribers: make(map[string]chan<- ExtractResult),
		stats:       make(map[string]*subscriberStats),
	}
}

func (b *bus) Subscribe(id string, ch chan<- ExtractResult) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = ch
	b.stats[id] = &subscriberStats{}
	return nil
}

func (b *bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}

	delete(b.subscribers, id)
	delete(b.stats, id)
	return nil
}

// Publish sends result to every subscriber without blocking. It
// panics if called after Close, matching this package's fail-fast
// convention for use-after-close.
func (b *bus) Publish(result ExtractResult) {
	b.totalPublished.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		panic("extractfanout: publish on closed bus")
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- result:
			b.stats[id].sent.Add(1)
		default:
			b.stats[id].dropped.Add(1)
		}
	}
}

func (b *bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := BusStats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.stats)),
	}

	var sent, dropped uint64
	for id, s := range b.stats {
		sc, dc := s.sent.Load(), s.dropped.Load()
		sent += sc
		dropped += dc
		out.Subscribers[id] = SubscriberStats{Sent: sc, Dropped: dc}
	}
	out.TotalSent = sent
	out.TotalDropped = dropped
	return out
}

// Close stops the bus. It does not close subscriber channels — each
// subscriber owns its own channel lifecycle. Idempotent.
func (b *bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return nil
}
