package eventbus

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeSink struct {
	mu      sync.Mutex
	changes []blacklist.Change
}

func (s *changeSink) handle(ctx context.Context, ch blacklist.Change) {
	s.mu.Lock()
	s.changes = append(s.changes, ch)
	s.mu.Unlock()
}

func (s *changeSink) snapshot() []blacklist.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]blacklist.Change(nil), s.changes...)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	got := make(chan *Envelope, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"A"}}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "1", EventType: "B"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "2", EventType: "A"}))

	select {
	case ev := <-got:
		assert.Equal(t, "2", ev.ID, "фильтр по типу")
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, uint64(2), bus.Metrics().Published)
	assert.Equal(t, uint64(1), bus.Metrics().Consumed)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	var calls int
	var mu sync.Mutex
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "A"}))
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestMemoryBus_ClosedRejects(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторный Close безопасен")

	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		<-block
	})
	require.NoError(t, err)

	// первое событие занимает обработчик, второе буфер
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 0}))
	require.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 0}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 0}))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, &Envelope{Priority: 9}), context.DeadlineExceeded, "высокий приоритет ждёт места")

	close(block)
}

func TestChangePublisher_RoundTrip(t *testing.T) {
	bus := NewMemoryBus(8)
	sink := &changeSink{}
	_, err := SubscribeChanges(context.Background(), bus, "node-b", sink.handle)
	require.NoError(t, err)

	want := blacklist.Change{Op: blacklist.OpAdd, Category: blacklist.Wall, Zone: "Arena", ID: 4}
	require.NoError(t, NewChangePublisher(bus, "node-a").BlacklistChanged(context.Background(), want))
	require.NoError(t, bus.Close())

	assert.Equal(t, []blacklist.Change{want}, sink.snapshot())
}

func TestSubscribeChanges_SkipsOwnNode(t *testing.T) {
	bus := NewMemoryBus(8)
	sink := &changeSink{}
	_, err := SubscribeChanges(context.Background(), bus, "node-a", sink.handle)
	require.NoError(t, err)

	require.NoError(t, NewChangePublisher(bus, "node-a").BlacklistChanged(context.Background(),
		blacklist.Change{Op: blacklist.OpRemove, Category: blacklist.Tile, ID: 1}))
	require.NoError(t, bus.Close())

	assert.Empty(t, sink.snapshot(), "свои события не применяются повторно")
}

func TestDecodeChange(t *testing.T) {
	_, err := DecodeChange(&Envelope{EventType: "Other"})
	assert.Error(t, err)

	_, err = DecodeChange(&Envelope{EventType: EventBlacklistChanged, Version: 2, Payload: []byte("{}")})
	assert.Error(t, err, "неизвестная версия схемы")

	_, err = DecodeChange(&Envelope{EventType: EventBlacklistChanged, Version: 1, Payload: []byte("{")})
	assert.Error(t, err)

	ch, err := DecodeChange(&Envelope{EventType: EventBlacklistChanged, Version: 1,
		Payload: []byte(`{"op":"add","category":1,"zone":"","id":12}`)})
	require.NoError(t, err)
	assert.Equal(t, blacklist.Change{Op: blacklist.OpAdd, Category: blacklist.Wall, ID: 12}, ch)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "A"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "A"}))
	require.NoError(t, bus.Close())

	prev := me.collect(Stats{})
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published))
	me.collect(prev)
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published), "повторный снимок без дельты")

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация в том же регистре")
}

func TestMetricsExporter_StartStop(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	me, err := NewMetricsExporter(bus, prometheus.NewRegistry())
	require.NoError(t, err)

	me.Start(5 * time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "A"}))
	require.Eventually(t, func() bool { return testutil.ToFloat64(me.published) == 1 }, 2*time.Second, 5*time.Millisecond)
	me.Stop()
	me.Stop()
}

// Требует запущенный NATS с JetStream: INVINCIBLE_TEST_NATS_URL=nats://127.0.0.1:4222
func TestJetStreamBus_RoundTrip(t *testing.T) {
	url := os.Getenv("INVINCIBLE_TEST_NATS_URL")
	if url == "" {
		t.Skip("INVINCIBLE_TEST_NATS_URL не задан")
	}

	bus, err := NewJetStreamBus(url, "INVINCIBLE_TEST", time.Minute)
	require.NoError(t, err)
	defer bus.Close()

	sink := &changeSink{}
	sub, err := SubscribeChanges(context.Background(), bus, "node-b", sink.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	want := blacklist.Change{Op: blacklist.OpAdd, Category: blacklist.Tile, Zone: "Arena", ID: 5}
	require.NoError(t, NewChangePublisher(bus, "node-a").BlacklistChanged(context.Background(), want))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, want, sink.snapshot()[0])

	assert.Error(t, bus.Publish(context.Background(), &Envelope{EventType: "bad.type"}))
}
