package messaging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edupredict/student-insight/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER MIRROR
// ══════════════════════════════════════════════════════════════════════════════

// RosterMirror holds the latest full roster snapshot. It has one writer, the
// SyncChannel loop, and any number of readers. Readers always get copies.
type RosterMirror struct {
	mu        sync.RWMutex
	records   []student.Record
	updatedAt time.Time
}

// NewRosterMirror creates an empty mirror.
func NewRosterMirror() *RosterMirror {
	return &RosterMirror{}
}

// replace swaps in a new snapshot. Only the SyncChannel calls it.
func (m *RosterMirror) replace(records []student.Record, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.updatedAt = at
}

// Snapshot returns a copy of the current roster, sorted by id.
func (m *RosterMirror) Snapshot() []student.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return student.CloneAll(m.records)
}

// UpdatedAt returns when the mirror was last replaced.
func (m *RosterMirror) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// Len returns the number of records in the mirror.
func (m *RosterMirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// SyncStatus reports whether the channel has a live subscription.
type SyncStatus string

const (
	StatusSynced    SyncStatus = "synced"
	StatusNotSynced SyncStatus = "not_synced"
)

// RosterLister is the read half of the roster store used for re-listing.
type RosterLister interface {
	List(ctx context.Context) ([]student.Record, error)
}

// SyncChannel keeps a RosterMirror in step with the roster store. Every
// change notification triggers a full re-list; consumers receive the whole
// roster, never a delta.
type SyncChannel struct {
	lister RosterLister
	feed   student.ChangeFeed
	mirror *RosterMirror
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	consumers   map[uint64]func([]student.Record)
	nextID      uint64
	running     bool
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}

	status  atomic.Value
	signal  chan struct{}
	relists atomic.Int64
}

// SyncChannelConfig configures a SyncChannel.
type SyncChannelConfig struct {
	Lister RosterLister
	Feed   student.ChangeFeed
	Mirror *RosterMirror
	Logger *slog.Logger
}

// NewSyncChannel creates a stopped channel.
func NewSyncChannel(cfg SyncChannelConfig) *SyncChannel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mirror == nil {
		cfg.Mirror = NewRosterMirror()
	}

	c := &SyncChannel{
		lister:    cfg.Lister,
		feed:      cfg.Feed,
		mirror:    cfg.Mirror,
		logger:    cfg.Logger.With("component", "sync_channel"),
		now:       time.Now,
		consumers: make(map[uint64]func([]student.Record)),
	}
	c.status.Store(StatusNotSynced)
	return c
}

// Start subscribes to the change feed and delivers the full roster to
// onSnapshot (and every attached consumer) after each change. An initial
// snapshot is delivered once the subscription is live.
//
// If the subscription cannot be established the failure is logged, no
// snapshot is delivered and the status stays not_synced. Start returns the
// error as well so callers can decide whether that is fatal.
func (c *SyncChannel) Start(ctx context.Context, onSnapshot func([]student.Record)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	if onSnapshot != nil {
		c.addConsumerLocked(onSnapshot)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	signal := make(chan struct{}, 1)
	var lost atomic.Bool

	unsubscribe, err := c.feed.Subscribe(loopCtx, func(change student.Change) {
		if change.Kind == student.ChangeFeedLost {
			lost.Store(true)
			c.markLost(loopCtx)
			return
		}
		c.logger.Debug("roster change", "kind", change.Kind, "id", change.ID)
		// coalesce: one pending re-list covers any number of changes
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		c.mu.Unlock()
		c.logger.Error("roster subscription failed", "error", err)
		return err
	}

	c.running = true
	c.unsubscribe = unsubscribe
	c.cancel = cancel
	c.signal = signal
	c.done = make(chan struct{})
	c.status.Store(StatusSynced)
	if lost.Load() {
		c.status.Store(StatusNotSynced)
	}
	done := c.done
	c.mu.Unlock()

	c.logger.Info("roster sync started")

	// initial load; a change delivered since Subscribe already queued one
	select {
	case signal <- struct{}{}:
	default:
	}

	go c.loop(loopCtx, signal, done)
	return nil
}

// markLost flips the status to not_synced when the feed dies underneath a
// running channel. The mirror keeps its last snapshot.
func (c *SyncChannel) markLost(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.status.Store(StatusNotSynced)
	c.logger.Error("roster change feed lost")
}

func (c *SyncChannel) loop(ctx context.Context, signal <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			c.relist(ctx)
		}
	}
}

func (c *SyncChannel) relist(ctx context.Context) {
	records, err := c.lister.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("roster re-list failed", "error", err)
		}
		return
	}
	student.SortByID(records)

	c.mirror.replace(records, c.now())
	c.relists.Add(1)

	c.mu.Lock()
	consumers := make([]func([]student.Record), 0, len(c.consumers))
	for _, fn := range c.consumers {
		consumers = append(consumers, fn)
	}
	c.mu.Unlock()

	for _, fn := range consumers {
		fn(student.CloneAll(records))
	}
}

// Refresh requests a re-list without a change notification. It reports
// false when the channel is not running.
func (c *SyncChannel) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return false
	}
	select {
	case c.signal <- struct{}{}:
	default:
	}
	return true
}

// Attach registers another snapshot consumer. The returned function detaches
// it and may be called more than once.
func (c *SyncChannel) Attach(onSnapshot func([]student.Record)) func() {
	c.mu.Lock()
	id := c.addConsumerLocked(onSnapshot)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.consumers, id)
			c.mu.Unlock()
		})
	}
}

func (c *SyncChannel) addConsumerLocked(fn func([]student.Record)) uint64 {
	c.nextID++
	c.consumers[c.nextID] = fn
	return c.nextID
}

// Stop cancels the subscription and waits for the loop to exit. It is safe to
// call more than once, and before Start.
func (c *SyncChannel) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	unsubscribe, cancel, done := c.unsubscribe, c.cancel, c.done
	c.unsubscribe, c.cancel = nil, nil
	c.status.Store(StatusNotSynced)
	c.mu.Unlock()

	unsubscribe()
	cancel()
	<-done

	c.logger.Info("roster sync stopped")
}

// Snapshot returns a copy of the mirrored roster.
func (c *SyncChannel) Snapshot() []student.Record {
	return c.mirror.Snapshot()
}

// Mirror returns the mirror owned by this channel.
func (c *SyncChannel) Mirror() *RosterMirror {
	return c.mirror
}

// Status reports whether the subscription is live.
func (c *SyncChannel) Status() SyncStatus {
	return c.status.Load().(SyncStatus)
}

// Synced reports whether Status is StatusSynced.
func (c *SyncChannel) Synced() bool {
	return c.Status() == StatusSynced
}

// Relists returns how many snapshots have been loaded.
func (c *SyncChannel) Relists() int64 {
	return c.relists.Load()
}
