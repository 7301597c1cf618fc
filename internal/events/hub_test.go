package events

import (
	"testing"

	"github.com/MrSnakeDoc/lookout/internal/logger"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(logger.New("error", false))

	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	defer cancelB()

	hub.Publish(Notification{Kind: Added, SourceID: "cam-1"})

	for name, ch := range map[string]<-chan Notification{"a": a, "b": b} {
		select {
		case n := <-ch:
			if n.Kind != Added || n.SourceID != "cam-1" || n.At.IsZero() {
				t.Errorf("%s got %+v", name, n)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("channel still open after cancel")
	}
	if got := hub.Subscribers(); got != 1 {
		t.Errorf("Subscribers() = %d, want 1", got)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(logger.New("error", false))
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(Notification{Kind: Reordered})
	hub.Publish(Notification{Kind: Removed})

	if n := <-ch; n.Kind != Reordered {
		t.Errorf("first notification = %s, want reordered", n.Kind)
	}
	select {
	case n := <-ch:
		t.Errorf("unexpected notification %s", n.Kind)
	default:
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(logger.New("error", false))
	ch, cancel := hub.Subscribe(1)

	hub.Close()
	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	cancel()

	late, _ := hub.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
	hub.Publish(Notification{Kind: Added})
}
