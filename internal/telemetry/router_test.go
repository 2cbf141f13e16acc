package telemetry

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func transitionEvent(id string, from, to string) Event {
	return Event{
		EventID:    id,
		Kind:       KindTransition,
		At:         time.Unix(100, 0),
		Transition: &Transition{OldID: behaviorID(from), NewID: behaviorID(to)},
	}
}

func TestRouterBuffersAndFlushes(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(4))
	first := transitionEvent("evt-1", "NoneBehavior", "Wait")
	second := transitionEvent("evt-2", "Wait", "NoneBehavior")
	router.Publish(first)
	router.Publish(second)
	sub := router.Subscribe(KindTransition)
	defer sub.Close()
	if got := <-sub.Events; got.EventID != first.EventID {
		t.Fatalf("expected first buffered event, got %s", got.EventID)
	}
	if got := <-sub.Events; got.EventID != second.EventID {
		t.Fatalf("expected second buffered event, got %s", got.EventID)
	}
}

func TestRouterDedupeByEventID(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe(KindTransition)
	defer sub.Close()
	event := transitionEvent("evt-1", "NoneBehavior", "Wait")
	router.Publish(event)
	router.Publish(event)
	select {
	case got := <-sub.Events:
		if got.EventID != event.EventID {
			t.Fatalf("unexpected event: %s", got.EventID)
		}
	default:
		t.Fatalf("expected first delivery")
	}
	select {
	case <-sub.Events:
		t.Fatalf("duplicate event delivered")
	default:
	}
}

func TestRouterDropsOldestOnOverflow(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe(KindTransition)
	defer sub.Close()
	router.Publish(transitionEvent("evt-1", "NoneBehavior", "Wait"))
	router.Publish(transitionEvent("evt-2", "Wait", "NoneBehavior"))
	if got := <-sub.Events; got.EventID != "evt-2" {
		t.Fatalf("expected newest event to survive, got %s", got.EventID)
	}
	if router.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", router.Dropped())
	}
}

func TestRouterKeepsKindsApart(t *testing.T) {
	router := NewRouter()
	results := router.Subscribe(KindResult)
	defer results.Close()
	router.Publish(transitionEvent("evt-1", "NoneBehavior", "Wait"))
	select {
	case got := <-results.Events:
		t.Fatalf("result subscriber received %s", got.Kind)
	default:
	}
}

func TestRouterBacklogIsBounded(t *testing.T) {
	router := NewRouter(RouterWithBacklogLimit(2))
	router.Publish(transitionEvent("evt-1", "a", "b"))
	router.Publish(transitionEvent("evt-2", "b", "c"))
	router.Publish(transitionEvent("evt-3", "c", "d"))
	sub := router.Subscribe(KindTransition)
	defer sub.Close()
	if got := <-sub.Events; got.EventID != "evt-2" {
		t.Fatalf("expected oldest backlog entry to be trimmed, got %s", got.EventID)
	}
	if got := <-sub.Events; got.EventID != "evt-3" {
		t.Fatalf("expected evt-3, got %s", got.EventID)
	}
}

func TestSubscriptionCloseClosesChannel(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe(KindActivity)
	sub.Close()
	sub.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel")
	}
	router.Publish(Event{EventID: "evt-1", Kind: KindActivity})
}

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	a := NewEvent(KindResult, 1, time.Time{})
	b := NewEvent(KindResult, 1, time.Time{})
	if a.EventID == "" || a.EventID == b.EventID {
		t.Fatalf("expected unique event ids, got %q and %q", a.EventID, b.EventID)
	}
}

func TestFanoutSkipsNilSinks(t *testing.T) {
	var got []string
	f := Fanout{nil, SinkFunc(func(e Event) { got = append(got, e.EventID) }), Discard}
	f.Publish(Event{EventID: "evt-1"})
	if len(got) != 1 || got[0] != "evt-1" {
		t.Fatalf("unexpected fanout delivery: %v", got)
	}
}
