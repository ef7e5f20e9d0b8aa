package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
	"github.com/edupredict/student-insight/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// fakeRedis is an in-process pub/sub hub. Every subscriber sees every
// message published on its channel, including its own.
type fakeRedis struct {
	mu   sync.Mutex
	subs map[string][]chan RedisMessage
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{subs: make(map[string][]chan RedisMessage)}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[channel] {
		ch <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	ch := make(chan RedisMessage, 64)
	f.mu.Lock()
	for _, c := range channels {
		f.subs[c] = append(f.subs[c], ch)
	}
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeRedis) Close() error { return nil }

// closeAll ends every subscription, as a dropped connection would.
func (f *fakeRedis) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, subs := range f.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(f.subs, name)
	}
}

type failingFeed struct{}

func (failingFeed) Subscribe(context.Context, func(student.Change)) (func(), error) {
	return nil, errors.New("permission denied")
}

// eagerFeed delivers a change from inside Subscribe, the way a listener
// goroutine can fire before the subscriber has finished setting up.
type eagerFeed struct {
	inner student.ChangeFeed
}

func (f eagerFeed) Subscribe(ctx context.Context, on func(student.Change)) (func(), error) {
	cancel, err := f.inner.Subscribe(ctx, on)
	if err != nil {
		return nil, err
	}
	on(student.Change{Kind: student.ChangeAdded, ID: "early"})
	return cancel, nil
}

// controlledFeed hands its callback to the test.
type controlledFeed struct {
	mu sync.Mutex
	on func(student.Change)
}

func (f *controlledFeed) Subscribe(_ context.Context, on func(student.Change)) (func(), error) {
	f.mu.Lock()
	f.on = on
	f.mu.Unlock()
	return func() {}, nil
}

func (f *controlledFeed) send(c student.Change) {
	f.mu.Lock()
	on := f.on
	f.mu.Unlock()
	on(c)
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps [][]student.Record
}

func (r *snapshotRecorder) record(s []student.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) last() []student.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func newRecord(name string) *student.Record {
	in := student.NewInputs(80, 3, 70)
	score, risk := student.NewScoreModel(student.FixedSource(0.5)).Evaluate(in)
	return &student.Record{Name: name, Inputs: in, PredictedScore: score, RiskLevel: risk}
}

// ─────────────────────────────────────────────────────────────────────────────
// SyncChannel
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncChannel_DeliversFullSnapshots(t *testing.T) {
	store := memory.NewRosterStore()
	ctx := context.Background()
	_, err := store.Add(ctx, newRecord("Ada"))
	require.NoError(t, err)

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})
	rec := &snapshotRecorder{}
	require.NoError(t, ch.Start(ctx, rec.record))
	defer ch.Stop()

	assert.Equal(t, StatusSynced, ch.Status())
	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, time.Second, 5*time.Millisecond)

	_, err = store.Add(ctx, newRecord("Grace"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.last()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, ch.Snapshot(), 2)

	snap := ch.Snapshot()
	assert.True(t, snap[0].ID < snap[1].ID, "snapshot sorted by id")
}

func TestSyncChannel_SnapshotIsACopy(t *testing.T) {
	store := memory.NewRosterStore()
	ctx := context.Background()
	_, err := store.Add(ctx, newRecord("Ada"))
	require.NoError(t, err)

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})
	require.NoError(t, ch.Start(ctx, nil))
	defer ch.Stop()
	require.Eventually(t, func() bool { return ch.Mirror().Len() == 1 }, time.Second, 5*time.Millisecond)

	snap := ch.Snapshot()
	snap[0].Name = "changed"
	assert.Equal(t, "Ada", ch.Snapshot()[0].Name)
}

func TestSyncChannel_AttachAndDetach(t *testing.T) {
	store := memory.NewRosterStore()
	ctx := context.Background()

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})
	require.NoError(t, ch.Start(ctx, nil))
	defer ch.Stop()

	extra := &snapshotRecorder{}
	detach := ch.Attach(extra.record)

	_, err := store.Add(ctx, newRecord("Ada"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(extra.last()) == 1 }, time.Second, 5*time.Millisecond)

	detach()
	detach()
	seen := extra.count()

	_, err = store.Add(ctx, newRecord("Grace"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.Mirror().Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, seen, extra.count())
}

func TestSyncChannel_SubscriptionFailure(t *testing.T) {
	store := memory.NewRosterStore()
	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: failingFeed{}})

	var called atomic.Bool
	err := ch.Start(context.Background(), func([]student.Record) { called.Store(true) })

	assert.Error(t, err)
	assert.Equal(t, StatusNotSynced, ch.Status())
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called.Load())
	assert.Empty(t, ch.Snapshot())

	ch.Stop()
}

func TestSyncChannel_StopIsIdempotent(t *testing.T) {
	store := memory.NewRosterStore()
	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})

	ch.Stop()
	require.NoError(t, ch.Start(context.Background(), nil))
	ch.Stop()
	ch.Stop()
	assert.Equal(t, StatusNotSynced, ch.Status())
}

func TestSyncChannel_ChangeDuringSubscribeDoesNotBlockStart(t *testing.T) {
	store := memory.NewRosterStore()
	_, err := store.Add(context.Background(), newRecord("Ada"))
	require.NoError(t, err)

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: eagerFeed{inner: store}})

	started := make(chan error, 1)
	go func() { started <- ch.Start(context.Background(), nil) }()

	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked")
	}
	defer ch.Stop()

	require.Eventually(t, func() bool { return ch.Mirror().Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusSynced, ch.Status())
}

func TestSyncChannel_LastSnapshotReflectsEveryMutation(t *testing.T) {
	store := memory.NewRosterStore()
	ctx := context.Background()

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})
	rec := &snapshotRecorder{}
	require.NoError(t, ch.Start(ctx, rec.record))
	defer ch.Stop()

	adaID, err := store.Add(ctx, newRecord("Ada"))
	require.NoError(t, err)
	graceID, err := store.Add(ctx, newRecord("Grace"))
	require.NoError(t, err)
	linusID, err := store.Add(ctx, newRecord("Linus"))
	require.NoError(t, err)

	ada, err := store.Get(ctx, adaID)
	require.NoError(t, err)
	ada.Name = "Ada Lovelace"
	require.NoError(t, store.Update(ctx, ada))

	attendance := 42.0
	require.NoError(t, store.Patch(ctx, graceID, student.Patch{Attendance: &attendance}))
	require.NoError(t, store.Delete(ctx, linusID))

	want, err := store.List(ctx)
	require.NoError(t, err)
	student.SortByID(want)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, rec.last())
	}, time.Second, 5*time.Millisecond)

	last := rec.last()
	require.Len(t, last, 2)
	for _, r := range last {
		switch r.ID {
		case adaID:
			assert.Equal(t, "Ada Lovelace", r.Name)
		case graceID:
			assert.Equal(t, 42.0, r.Attendance)
		default:
			t.Fatalf("unexpected record %s", r.ID)
		}
	}
}

func TestSyncChannel_FeedLostMarksNotSynced(t *testing.T) {
	store := memory.NewRosterStore()
	feed := &controlledFeed{}
	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: feed})

	require.NoError(t, ch.Start(context.Background(), nil))
	defer ch.Stop()
	require.Eventually(t, func() bool { return ch.Relists() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, ch.Synced())

	feed.send(student.Change{Kind: student.ChangeFeedLost})
	assert.Equal(t, StatusNotSynced, ch.Status())

	// the mirror is kept and a manual refresh still reloads it
	assert.True(t, ch.Refresh())
	require.Eventually(t, func() bool { return ch.Relists() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRedisChangeFeed_ClosedSubscriptionReportsLost(t *testing.T) {
	hub := newFakeRedis()
	feed, err := NewRedisChangeFeed(RedisChangeFeedConfig{Client: hub, InstanceID: "a"})
	require.NoError(t, err)

	got := make(chan student.Change, 1)
	cancel, err := feed.Subscribe(context.Background(), func(c student.Change) { got <- c })
	require.NoError(t, err)
	defer cancel()

	hub.closeAll()

	select {
	case c := <-got:
		assert.Equal(t, student.ChangeFeedLost, c.Kind)
	case <-time.After(time.Second):
		t.Fatal("no feed_lost change")
	}
}

func TestSyncChannel_Refresh(t *testing.T) {
	store := memory.NewRosterStore()
	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: store})
	assert.False(t, ch.Refresh())

	require.NoError(t, ch.Start(context.Background(), nil))
	defer ch.Stop()
	require.Eventually(t, func() bool { return ch.Relists() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, ch.Refresh())
	require.Eventually(t, func() bool { return ch.Relists() == 2 }, time.Second, 5*time.Millisecond)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis change feed
// ─────────────────────────────────────────────────────────────────────────────

func TestRedisChangeFeed_SkipsOwnMessages(t *testing.T) {
	hub := newFakeRedis()
	a, err := NewRedisChangeFeed(RedisChangeFeedConfig{Client: hub, InstanceID: "a"})
	require.NoError(t, err)
	b, err := NewRedisChangeFeed(RedisChangeFeedConfig{Client: hub, InstanceID: "b"})
	require.NoError(t, err)

	var gotA, gotB atomic.Int32
	ctx := context.Background()
	cancelA, err := a.Subscribe(ctx, func(student.Change) { gotA.Add(1) })
	require.NoError(t, err)
	defer cancelA()
	cancelB, err := b.Subscribe(ctx, func(c student.Change) {
		assert.Equal(t, "s1", c.ID)
		gotB.Add(1)
	})
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, a.Publish(ctx, student.Change{Kind: student.ChangeAdded, ID: "s1"}))

	require.Eventually(t, func() bool { return gotB.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), gotA.Load())
}

func TestRedisChangeFeed_RelayDrivesRemoteMirror(t *testing.T) {
	hub := newFakeRedis()
	ctx := context.Background()

	// both instances read the same underlying store
	store := memory.NewRosterStore()

	writer, err := NewRedisChangeFeed(RedisChangeFeedConfig{Client: hub, InstanceID: "writer"})
	require.NoError(t, err)
	stopRelay, err := writer.Relay(ctx, store)
	require.NoError(t, err)
	defer stopRelay()

	reader, err := NewRedisChangeFeed(RedisChangeFeedConfig{Client: hub, InstanceID: "reader"})
	require.NoError(t, err)

	ch := NewSyncChannel(SyncChannelConfig{Lister: store, Feed: reader})
	require.NoError(t, ch.Start(ctx, nil))
	defer ch.Stop()

	_, err = store.Add(ctx, newRecord("Ada"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ch.Mirror().Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMergeFeeds_FailureUndoesSubscriptions(t *testing.T) {
	store := memory.NewRosterStore()
	_, err := MergeFeeds(store, failingFeed{}).Subscribe(context.Background(), func(student.Change) {})
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Event bus
// ─────────────────────────────────────────────────────────────────────────────

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventHighRiskAlert, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(shared.NewHighRiskAlertEvent(3, "alert")))
	require.NoError(t, bus.Publish(shared.NewRosterImportedEvent("admin", 2, 0)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	assert.Equal(t, int64(2), bus.Metrics().Published)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.Publish(shared.NewHighRiskAlertEvent(1, "alert")))

	assert.Equal(t, int64(1), bus.Metrics().Failed)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewHighRiskAlertEvent(1, "x")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventHighRiskAlert, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestRedisEventBus_RemoteDelivery(t *testing.T) {
	hub := newFakeRedis()

	a, err := NewRedisEventBus(RedisEventBusConfig{Client: hub, InstanceID: "a", LocalBus: InMemoryEventBusConfig{}})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisEventBus(RedisEventBusConfig{Client: hub, InstanceID: "b", LocalBus: InMemoryEventBusConfig{}})
	require.NoError(t, err)
	defer b.Close()

	var onA, onB atomic.Int32
	require.NoError(t, a.Subscribe(shared.EventHighRiskAlert, func(shared.Event) error { onA.Add(1); return nil }))
	require.NoError(t, b.Subscribe(shared.EventHighRiskAlert, func(e shared.Event) error {
		assert.EqualValues(t, 4, e.Payload()["high_risk_count"])
		onB.Add(1)
		return nil
	}))

	require.NoError(t, a.Publish(shared.NewHighRiskAlertEvent(4, "alert")))

	require.Eventually(t, func() bool { return onB.Load() == 1 }, time.Second, 5*time.Millisecond)
	// a got it once, locally, not again from redis
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), onA.Load())
}
