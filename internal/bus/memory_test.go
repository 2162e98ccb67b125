package bus

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

func receive(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case payload := <-sub.C:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestMemoryPublishReachesGroupMembers(t *testing.T) {
	m := NewMemory(testLogger())
	a := NewSubscription("a", 4)
	b := NewSubscription("b", 4)
	m.Subscribe("public-feed", a)
	m.Subscribe("public-feed", b)

	require.NoError(t, m.Publish(context.Background(), "public-feed", []byte(`{"type":"x"}`)))

	assert.Equal(t, []byte(`{"type":"x"}`), receive(t, a))
	assert.Equal(t, []byte(`{"type":"x"}`), receive(t, b))
}

func TestMemoryPublishSkipsOtherGroups(t *testing.T) {
	m := NewMemory(testLogger())
	a := NewSubscription("a", 4)
	m.Subscribe(UserGroup(1), a)

	require.NoError(t, m.Publish(context.Background(), UserGroup(2), []byte(`{}`)))

	select {
	case <-a.C:
		t.Fatal("frame delivered to wrong group")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySubscribeIdempotent(t *testing.T) {
	m := NewMemory(testLogger())
	a := NewSubscription("a", 4)
	m.Subscribe("g", a)
	m.Subscribe("g", a)

	require.NoError(t, m.Publish(context.Background(), "g", []byte(`1`)))
	receive(t, a)

	select {
	case <-a.C:
		t.Fatal("duplicate delivery after double subscribe")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unsubscribe("g", a)
	m.Unsubscribe("g", a)
	assert.Equal(t, 0, m.Members("g"))
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemory(testLogger())
	a := NewSubscription("a", 4)
	m.Subscribe("g", a)
	m.Unsubscribe("g", a)

	require.NoError(t, m.Publish(context.Background(), "g", []byte(`1`)))

	select {
	case <-a.C:
		t.Fatal("frame delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	m := NewMemory(testLogger())
	a := NewSubscription("a", 2)
	m.Subscribe("g", a)

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Publish(context.Background(), "g", []byte{byte('0' + i)}))
	}

	// Oldest two frames were dropped to admit the newest two.
	assert.Equal(t, []byte("2"), receive(t, a))
	assert.Equal(t, []byte("3"), receive(t, a))
}

func TestGroupNames(t *testing.T) {
	assert.Equal(t, "user:42", UserGroup(42))
	assert.Equal(t, "public-feed", PublicFeedGroup)
}
