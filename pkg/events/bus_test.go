package events

import (
	"context"
	"sync"
	"testing"

	"savings-client/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestBusDeliversBeforePublishReturns(t *testing.T) {
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	rec := &recorder{}
	unsubscribe, err := bus.Subscribe(TopicAuthChanged, rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(true)))
	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(false)))

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.True(t, IsAuthenticated(got[0]))
	assert.False(t, IsAuthenticated(got[1]))
	assert.Equal(t, TopicAuthChanged, got[0].EventType())
}

func TestBusTopicsAreIsolated(t *testing.T) {
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	rec := &recorder{}
	unsubscribe, err := bus.Subscribe(TopicUserUpdated, rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(true)))
	assert.Empty(t, rec.snapshot())
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	first, second := &recorder{}, &recorder{}
	unsubscribeFirst, err := bus.Subscribe(TopicAuthChanged, first.handle)
	require.NoError(t, err)
	unsubscribeSecond, err := bus.Subscribe(TopicAuthChanged, second.handle)
	require.NoError(t, err)
	defer unsubscribeSecond()

	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(true)))
	unsubscribeFirst()
	unsubscribeFirst()
	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(false)))

	assert.Len(t, first.snapshot(), 1)
	assert.Len(t, second.snapshot(), 2)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(logger.NewNopLogger())
	defer bus.Close()

	unsubscribePanic, err := bus.Subscribe(TopicAuthChanged, func(context.Context, Event) { panic("boom") })
	require.NoError(t, err)
	defer unsubscribePanic()

	rec := &recorder{}
	unsubscribe, err := bus.Subscribe(TopicAuthChanged, rec.handle)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(true)))
	require.NoError(t, bus.Publish(context.Background(), NewAuthChanged(true)))

	assert.Len(t, rec.snapshot(), 2)
}
