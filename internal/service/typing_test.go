package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

func TestTypingSignalExpires(t *testing.T) {
	tr := NewTypingTracker("me", 40*time.Millisecond, nil)
	defer tr.Close()

	tr.Observe("private-c1", "peer-1")
	assert.True(t, tr.IsTyping("private-c1"), "expected peer typing right after signal")

	time.Sleep(80 * time.Millisecond)
	assert.False(t, tr.IsTyping("private-c1"), "expected signal to expire after the window")
}

func TestTypingRefreshExtendsWindow(t *testing.T) {
	tr := NewTypingTracker("me", 60*time.Millisecond, nil)
	defer tr.Close()

	tr.Observe("private-c1", "peer-1")
	time.Sleep(40 * time.Millisecond)
	tr.Observe("private-c1", "peer-1")
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first signal, but only 40ms after the refresh.
	assert.True(t, tr.IsTyping("private-c1"), "expected refresh to reset the window")

	time.Sleep(60 * time.Millisecond)
	assert.False(t, tr.IsTyping("private-c1"), "expected refreshed signal to expire eventually")
}

func TestTypingIgnoresSelf(t *testing.T) {
	tr := NewTypingTracker("me", time.Second, nil)
	defer tr.Close()

	tr.Observe("private-c1", "me")
	tr.Observe("private-c1", "")
	assert.False(t, tr.IsTyping("private-c1"), "expected own and anonymous signals to be dropped")
}

func TestTypingPeersSortedPerRoom(t *testing.T) {
	tr := NewTypingTracker("me", time.Second, nil)
	defer tr.Close()

	tr.Observe("private-c1", "zoe")
	tr.Observe("private-c1", "amy")
	tr.Observe("private-c2", "bob")

	assert.Equal(t, []string{"amy", "zoe"}, tr.Peers("private-c1"), "expected sorted peers scoped to the room")
	assert.Equal(t, []string{"bob"}, tr.Peers("private-c2"), "expected other room unaffected")
	assert.Empty(t, tr.Peers("private-c3"), "expected no peers in untouched room")
}

func TestTypingPublishesOnFreshSignalOnly(t *testing.T) {
	bus := domain.NewEventBus()
	events := bus.Subscribe([]domain.EventType{domain.EventTypeTyping})

	tr := NewTypingTracker("me", time.Second, bus)
	defer tr.Close()

	tr.Observe("private-c1", "peer-1")
	tr.Observe("private-c1", "peer-1")

	select {
	case ev := <-events:
		typing, ok := ev.(domain.TypingEvent)
		assert.True(t, ok, "expected a typing event")
		assert.Equal(t, "private-c1", typing.RoomName, "expected event for the observed room")
		assert.Equal(t, "peer-1", typing.SenderID, "expected event for the observed sender")
	default:
		t.Fatal("expected a typing event on fresh signal")
	}

	select {
	case <-events:
		t.Fatal("expected no second event for a refresh")
	default:
	}
}

func TestTypingCloseStopsTimers(t *testing.T) {
	tr := NewTypingTracker("me", time.Second, nil)

	tr.Observe("private-c1", "peer-1")
	tr.Close()

	assert.False(t, tr.IsTyping("private-c1"), "expected Close to clear signals")

	tr.Observe("private-c1", "peer-2")
	assert.False(t, tr.IsTyping("private-c1"), "expected observations after Close to be dropped")
}
