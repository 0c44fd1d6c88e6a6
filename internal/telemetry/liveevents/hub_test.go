package liveevents

import (
	"testing"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesCurrentSubscribersOnly(t *testing.T) {
	hub := NewHub()

	first, err := hub.Subscribe()
	require.NoError(t, err)
	second, err := hub.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.Publish(domain.Record{DeviceID: "D1", NodeID: "N1", Voltage: 230})

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, EventMeterData, ev.Name)
			assert.Equal(t, "D1", ev.Record.DeviceID)
		default:
			t.Fatal("expected an event")
		}
	}

	late, err := hub.Subscribe()
	require.NoError(t, err)
	select {
	case <-late.Events():
		t.Fatal("late subscriber must not receive earlier events")
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe()
	require.NoError(t, err)

	for i := 0; i < DefaultSubscriberBuffer*3; i++ {
		hub.Publish(domain.Record{DeviceID: "D1"})
	}
	assert.Len(t, sub.Events(), DefaultSubscriberBuffer)
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe()
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Count())

	_, open := <-sub.Events()
	assert.False(t, open)

	assert.NotPanics(t, func() { hub.Publish(domain.Record{}) })
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	_, err := hub.Subscribe()
	assert.ErrorIs(t, err, ErrHubUnavailable)
	assert.Equal(t, 0, hub.Count())
	assert.NotPanics(t, func() { hub.Publish(domain.Record{}) })
}
