package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/logging"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry()
	first, second := NewChannelSession(1), NewChannelSession(1)

	unregisterFirst := registry.Register("tech-1", first)
	unregisterSecond := registry.Register("tech-1", second)
	assert.Len(t, registry.Lookup("tech-1"), 2)
	assert.Equal(t, 1, registry.Connected())

	unregisterFirst()
	unregisterFirst()
	assert.Len(t, registry.Lookup("tech-1"), 1)

	unregisterSecond()
	assert.Empty(t, registry.Lookup("tech-1"))
	assert.Zero(t, registry.Connected())
}

func TestDispatcherDeliversToEverySession(t *testing.T) {
	registry := NewRegistry()
	a, b := NewChannelSession(1), NewChannelSession(1)
	defer registry.Register("cust-1", a)()
	defer registry.Register("cust-1", b)()

	dispatcher := NewDispatcher(registry)
	msg := Message{Kind: KindBookingStatusChanged, Destination: "cust-1", Body: "completed"}
	require.NoError(t, dispatcher.Send(context.Background(), msg))

	assert.Equal(t, msg, <-a.Messages())
	assert.Equal(t, msg, <-b.Messages())

	// Nobody connected: nothing to do, not an error.
	assert.NoError(t, dispatcher.Send(context.Background(), Message{Destination: "offline"}))
}

func TestDispatcherReportsFullSessions(t *testing.T) {
	registry := NewRegistry()
	s := NewChannelSession(1)
	defer registry.Register("u", s)()

	dispatcher := NewDispatcher(registry)
	require.NoError(t, dispatcher.Send(context.Background(), Message{Destination: "u"}))
	err := dispatcher.Send(context.Background(), Message{Destination: "u"})
	assert.ErrorIs(t, err, ErrSessionFull)
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, Message) error { return errors.New("push gateway down") }

func TestMultiJoinsErrors(t *testing.T) {
	registry := NewRegistry()
	s := NewChannelSession(1)
	defer registry.Register("u", s)()

	multi := Multi{NewLoggerNotifier(logging.Discard()), failingNotifier{}, NewDispatcher(registry)}
	err := multi.Send(context.Background(), Message{Destination: "u", Kind: KindBookingCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push gateway down")

	select {
	case msg := <-s.Messages():
		assert.Equal(t, KindBookingCreated, msg.Kind)
	default:
		t.Fatal("dispatcher did not run after a failing notifier")
	}
}

func TestRedisRelayForwardsPublishedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	registry := NewRegistry()
	session := NewChannelSession(4)
	defer registry.Register("tech-9", session)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := NewRelay(cache, "", NewDispatcher(registry), logging.Discard())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("relay stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	publisher := NewPublisher(cache, "")
	require.NoError(t, publisher.Send(ctx, Message{
		Kind: KindBookingCreated, Destination: "tech-9", Body: "new booking", Data: map[string]string{"booking_id": "b-1"},
	}))

	select {
	case msg := <-session.Messages():
		assert.Equal(t, "new booking", msg.Body)
		assert.Equal(t, "b-1", msg.Data["booking_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("message was not relayed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
