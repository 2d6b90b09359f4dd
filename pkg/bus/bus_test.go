package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/recast/pkg/reform"
	"github.com/stretchr/testify/require"
)

func TestBus_ReformHandlerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := reform.New(reform.Config{
		RenewRecord: true,
		KeepKeys:    []string{"user_id"},
	}, map[string]any{"status": "ok"})
	require.NoError(t, err)

	b, err := NewInMemoryBus()
	require.NoError(t, err)
	b.AddReformHandler("reform", "events.in", "events.out", r, "app")

	msgs, err := b.Subscriber.Subscribe(ctx, "events.out")
	require.NoError(t, err)

	go func() { _ = b.Run(ctx) }()
	select {
	case <-b.Router.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}

	payload, err := json.Marshal(Envelope{
		Tag:  "app.web",
		Time: 1000,
		Record: map[string]any{
			"user_id": 42,
			"debug":   "x",
		},
	})
	require.NoError(t, err)
	require.NoError(t, b.Publisher.Publish("events.in",
		message.NewMessage(watermill.NewUUID(), payload)))

	select {
	case msg := <-msgs:
		msg.Ack()
		var env Envelope
		require.NoError(t, json.Unmarshal(msg.Payload, &env))
		require.Equal(t, "app.web", env.Tag)
		require.Equal(t, int64(1000), env.Time)
		require.Equal(t, map[string]any{
			"user_id": float64(42),
			"status":  "ok",
		}, env.Record)
	case <-ctx.Done():
		t.Fatal("no transformed event received")
	}
}

func TestBus_MalformedPayloadIsDropped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := reform.New(reform.Config{}, map[string]any{})
	require.NoError(t, err)

	b, err := NewInMemoryBus()
	require.NoError(t, err)
	b.AddReformHandler("reform", "events.in", "events.out", r, "app")

	msgs, err := b.Subscriber.Subscribe(ctx, "events.out")
	require.NoError(t, err)

	go func() { _ = b.Run(ctx) }()
	select {
	case <-b.Router.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}

	require.NoError(t, b.Publisher.Publish("events.in",
		message.NewMessage(watermill.NewUUID(), []byte("{not json"))))

	good, err := json.Marshal(Envelope{Tag: "app", Record: map[string]any{"ok": true}})
	require.NoError(t, err)
	require.NoError(t, b.Publisher.Publish("events.in",
		message.NewMessage(watermill.NewUUID(), good)))

	// Only the well-formed event makes it through.
	select {
	case msg := <-msgs:
		msg.Ack()
		var env Envelope
		require.NoError(t, json.Unmarshal(msg.Payload, &env))
		require.Equal(t, map[string]any{"ok": true}, env.Record)
	case <-ctx.Done():
		t.Fatal("no transformed event received")
	}
}
