package realtime

import "testing"

func TestDispatcherDeliversInSubscriptionOrder(t *testing.T) {
	d := newDispatcher()

	var order []string
	d.subscribe(func(Event) { order = append(order, "first") })
	d.subscribe(func(Event) { order = append(order, "second") })
	d.subscribe(func(Event) { order = append(order, "third") })

	d.emit(Event{Type: EventStatus})

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestDispatcherUnsubscribeIsIdempotent(t *testing.T) {
	d := newDispatcher()

	var kept, removed int
	d.subscribe(func(Event) { kept++ })
	unsubscribe := d.subscribe(func(Event) { removed++ })

	unsubscribe()
	unsubscribe()

	d.emit(Event{Type: EventStatus})

	if kept != 1 {
		t.Errorf("expected remaining handler to fire once, got %d", kept)
	}
	if removed != 0 {
		t.Errorf("expected removed handler not to fire, got %d", removed)
	}
}

func TestDispatcherAllowsSubscribeDuringEmit(t *testing.T) {
	d := newDispatcher()

	var late int
	d.subscribe(func(Event) {
		d.subscribe(func(Event) { late++ })
	})

	d.emit(Event{Type: EventStatus})
	if late != 0 {
		t.Errorf("handler subscribed during emit should not see the same event, got %d", late)
	}

	d.emit(Event{Type: EventStatus})
	if late != 1 {
		t.Errorf("expected late handler to fire on next emit, got %d", late)
	}
}
