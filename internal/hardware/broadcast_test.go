package hardware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcast[Event](nil, 4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	b.Publish(Event{Endpoint: EndpointRx, Data: []byte{1}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev1, ok := s1.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, ev1.Data)

	ev2, ok := s2.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, ev2.Data)
}

func TestBroadcast_SlowSubscriberDropsOldestRatherThanBlocking(t *testing.T) {
	b := NewBroadcast[Event](nil, 2)
	s := b.Subscribe()
	defer s.Unsubscribe()

	// Publish more than the buffer can hold without ever calling Next;
	// this must not block or panic.
	for i := 0; i < 10; i++ {
		b.Publish(Event{Endpoint: EndpointRx, Data: []byte{byte(i)}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, ok := s.Next(ctx)
	require.True(t, ok)
	// Only the most recent writes survive a buffer sized 2.
	assert.GreaterOrEqual(t, int(ev.Data[0]), 8)
}

func TestBroadcast_NextReturnsFalseOnContextCancel(t *testing.T) {
	b := NewBroadcast[Event](nil, 4)
	s := b.Subscribe()
	defer s.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := s.Next(ctx)
	assert.False(t, ok)
}

func TestBroadcast_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcast[Event](nil, 4)
	s := b.Subscribe()
	s.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(Event{Endpoint: EndpointRx, Data: []byte{1}})
}

func TestCommand_Overlaps(t *testing.T) {
	a := Command{Kind: CommandWrite, Endpoint: EndpointTxVibrate, Data: []byte{1}}
	b := Command{Kind: CommandWrite, Endpoint: EndpointTxVibrate, Data: []byte{2}}
	c := Command{Kind: CommandWrite, Endpoint: EndpointTxShock, Data: []byte{2}}
	d := Command{Kind: CommandRead, Endpoint: EndpointTxVibrate}

	assert.True(t, a.Overlaps(b), "same kind and endpoint overlaps regardless of payload")
	assert.False(t, a.Overlaps(c), "different endpoint never overlaps")
	assert.False(t, a.Overlaps(d), "different kind never overlaps")
}

func TestGenericEndpoint_Range(t *testing.T) {
	ep, err := GenericEndpoint(0)
	require.NoError(t, err)
	assert.Equal(t, Endpoint("Generic0"), ep)

	_, err = GenericEndpoint(32)
	assert.Error(t, err)

	_, err = GenericEndpoint(-1)
	assert.Error(t, err)
}
