package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wallet-ledger-engine/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Publish(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	defer client.Close()

	pub := NewEventPublisher(client, zerolog.Nop())
	ctx := context.Background()

	sub := client.Subscribe(ctx, eventChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx) // wait for subscription confirmation
	require.NoError(t, err)

	w, err := domain.NewWallet(uuid.New())
	require.NoError(t, err)
	events := w.PullEvents()
	require.Len(t, events, 1)

	err = pub.Publish(ctx, events...)
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var env eventEnvelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, "wallet.created", env.Name)
		assert.NotEmpty(t, env.OccurredAt)
		assert.NotEmpty(t, env.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received on channel")
	}
}

func TestEventPublisher_PublishNothing(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	defer client.Close()

	pub := NewEventPublisher(client, zerolog.Nop())

	// Zero events is a no-op.
	err := pub.Publish(context.Background())
	assert.NoError(t, err)
}
