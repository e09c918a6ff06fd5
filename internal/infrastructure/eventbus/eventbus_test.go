package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboglioli/configd/internal/core/domain"
)

func makeEvent(t *testing.T, topic string) domain.Event {
	t.Helper()
	event, err := domain.CreateEvent("entity-01", topic, map[string]string{"id": "entity-01"}, time.Now())
	require.NoError(t, err)
	return event
}

func TestPublishDispatchesToSubscribedTopicOnly(t *testing.T) {
	bus := New()

	var got []string
	bus.Subscribe("topic.a", func(ctx context.Context, event domain.Event) error {
		got = append(got, "a:"+event.Topic)
		return nil
	})
	bus.Subscribe("topic.b", func(ctx context.Context, event domain.Event) error {
		got = append(got, "b:"+event.Topic)
		return nil
	})

	err := bus.Publish(context.Background(), []domain.Event{
		makeEvent(t, "topic.a"),
		makeEvent(t, "topic.c"),
		makeEvent(t, "topic.b"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:topic.a", "b:topic.b"}, got)
}

func TestPublishPreservesOrderAcrossHandlers(t *testing.T) {
	bus := New()

	var got []int
	bus.Subscribe("topic.a", func(ctx context.Context, event domain.Event) error {
		got = append(got, 1)
		return nil
	})
	bus.Subscribe("topic.a", func(ctx context.Context, event domain.Event) error {
		got = append(got, 2)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), []domain.Event{
		makeEvent(t, "topic.a"),
		makeEvent(t, "topic.a"),
	}))
	assert.Equal(t, []int{1, 2, 1, 2}, got)
}

func TestPublishSurfacesHandlerFailure(t *testing.T) {
	bus := New()

	boom := errors.New("boom")
	bus.Subscribe("topic.a", func(ctx context.Context, event domain.Event) error {
		return boom
	})

	err := bus.Publish(context.Background(), []domain.Event{makeEvent(t, "topic.a")})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestReentrantPublish(t *testing.T) {
	bus := New()

	var got []string
	bus.Subscribe("outer", func(ctx context.Context, event domain.Event) error {
		got = append(got, "outer")
		return bus.Publish(ctx, []domain.Event{makeEvent(t, "inner")})
	})
	bus.Subscribe("inner", func(ctx context.Context, event domain.Event) error {
		got = append(got, "inner")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), []domain.Event{makeEvent(t, "outer")}))
	assert.Equal(t, []string{"outer", "inner"}, got)
}
