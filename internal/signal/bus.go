package signal

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSubscriberCapacity = 64
	defaultBacklogLimit       = 32
	defaultDedupeWindow       = 512
)

// BusOption customizes Bus construction.
type BusOption func(*Bus)

// WithLogger injects a logger for drop messages.
func WithLogger(logger Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithSubscriberCapacity overrides the buffered channel size per subscriber.
func WithSubscriberCapacity(capacity int) BusOption {
	return func(b *Bus) {
		if capacity > 0 {
			b.channelSize = capacity
		}
	}
}

// WithBacklogLimit overrides how many signals are held for a name nobody
// has subscribed to yet.
func WithBacklogLimit(limit int) BusOption {
	return func(b *Bus) {
		if limit > 0 {
			b.backlogLimit = limit
		}
	}
}

// WithDedupeWindow controls how many recent signal IDs are remembered.
func WithDedupeWindow(size int) BusOption {
	return func(b *Bus) {
		if size > 0 {
			b.dedupeWindow = size
		}
	}
}

// WithNow overrides the emission timestamp source.
func WithNow(now func() time.Time) BusOption {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// Bus routes signals to subscribers by name with buffering, backlog and
// deduplication.
type Bus struct {
	mu           sync.RWMutex
	subscribers  map[string]map[*subscriber]struct{}
	backlog      map[string][]Signal
	recentIDs    map[string]struct{}
	recentOrder  []string
	sequence     atomic.Int64
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
	now          func() time.Time
}

// Subscription is an active subscription.
type Subscription struct {
	Signals <-chan Signal
	cancel  func()
}

// Close terminates the subscription and closes its channel.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewBus constructs a bus with default limits.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subscribers:  map[string]map[*subscriber]struct{}{},
		backlog:      map[string][]Signal{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscribe registers for signals with the given name, or every signal when
// name is Wildcard. Backlogged signals for the name are flushed first.
func (b *Bus) Subscribe(name string) Subscription {
	key := NormalizeName(name)
	sub := newSubscriber(b.channelSize, b.logger)
	var backlog []Signal
	b.mu.Lock()
	if b.subscribers[key] == nil {
		b.subscribers[key] = map[*subscriber]struct{}{}
	}
	b.subscribers[key][sub] = struct{}{}
	if key == Wildcard {
		for pending, queued := range b.backlog {
			backlog = append(backlog, queued...)
			delete(b.backlog, pending)
		}
		sortBySequence(backlog)
	} else if queued := b.backlog[key]; len(queued) > 0 {
		backlog = append(backlog, queued...)
		delete(b.backlog, key)
	}
	b.mu.Unlock()
	for _, sig := range backlog {
		sub.deliver(sig)
	}
	return Subscription{
		Signals: sub.channel(),
		cancel: func() {
			b.removeSubscriber(key, sub)
		},
	}
}

// Publish stamps and routes a signal, returning the stamped copy. Signals
// whose ID was seen recently are dropped.
func (b *Bus) Publish(sig Signal) Signal {
	sig.Name = NormalizeName(sig.Name)
	if sig.Name == "" {
		return sig
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	} else if b.isDuplicate(sig.ID) {
		return sig
	}
	sig.Sequence = b.sequence.Add(1)
	if sig.EmittedAt.IsZero() {
		sig.EmittedAt = b.now().UTC()
	}
	b.mu.RLock()
	subs := b.snapshot(sig.Name)
	subs = append(subs, b.snapshot(Wildcard)...)
	b.mu.RUnlock()
	if len(subs) == 0 {
		b.buffer(sig)
		return sig
	}
	for _, sub := range subs {
		sub.deliver(sig)
	}
	return sig
}

func (b *Bus) snapshot(key string) []*subscriber {
	live := b.subscribers[key]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (b *Bus) removeSubscriber(key string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.subscribers[key]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, key)
		}
	}
	sub.close()
}

func (b *Bus) buffer(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.backlog[sig.Name]
	if len(queue) >= b.backlogLimit {
		queue = queue[1:]
		if b.logger != nil {
			b.logger.Printf("signal: backlog drop for %s (limit %d)", sig.Name, b.backlogLimit)
		}
	}
	b.backlog[sig.Name] = append(queue, sig)
}

func (b *Bus) isDuplicate(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.recentIDs[id]; ok {
		return true
	}
	b.recentIDs[id] = struct{}{}
	b.recentOrder = append(b.recentOrder, id)
	if len(b.recentOrder) > b.dedupeWindow {
		oldest := b.recentOrder[0]
		b.recentOrder = b.recentOrder[1:]
		delete(b.recentIDs, oldest)
	}
	return false
}

func sortBySequence(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Sequence < signals[j].Sequence
	})
}

type subscriber struct {
	ch      chan Signal
	logger  Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Signal, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan Signal {
	return s.ch
}

// deliver never blocks: when the buffer is full the oldest queued signal is
// dropped to make room.
func (s *subscriber) deliver(sig Signal) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- sig:
			return
		default:
		}
		select {
		case oldest := <-s.ch:
			if s.logger != nil {
				s.logger.Printf("signal: dropped %s (queue overflow)", oldest.Name)
			}
		default:
		}
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
