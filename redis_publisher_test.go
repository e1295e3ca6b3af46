package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherSetsKeyAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, defaultViewChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	pub := NewRedisPublisher(RedisPublisherConfig{TTL: 30 * time.Second}, rdb)
	s, _ := newTestScreener(seedStore(t), newFakeTicker())
	v := s.Compute(DefaultParamValues())

	require.NoError(t, pub.PublishView(ctx, v))

	raw, err := mr.Get(defaultViewKey)
	require.NoError(t, err)
	var stored View
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "run-1", stored.RunID)
	require.Len(t, stored.Trading, 2)
	assert.Equal(t, "HBL", stored.Trading[0].Key)
	assert.Equal(t, 30*time.Second, mr.TTL(defaultViewKey))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, raw, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no view published on channel")
	}
}

func TestRedisPublisherReportsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	pub := NewRedisPublisher(RedisPublisherConfig{Key: "k", Channel: "c"}, rdb)
	t.Cleanup(func() { _ = pub.Close() })

	mr.Close()
	err := pub.PublishView(context.Background(), &View{RunID: "x"})
	assert.Error(t, err)
}

func TestRedisPublisherAsScreenerSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := NewRedisPublisher(RedisPublisherConfig{}, rdb)
	t.Cleanup(func() { _ = pub.Close() })

	s, m := newTestScreener(seedStore(t), newFakeTicker(), pub)
	s.Tick(context.Background())

	assert.True(t, mr.Exists(defaultViewKey))
	assert.Equal(t, time.Minute, mr.TTL(defaultViewKey))
	assert.Equal(t, int64(1), m.viewsPublished.Load())
}
