package events

import "testing"

func TestBusSubscribePublish(t *testing.T) {
	b := NewBus()
	var got []Event
	unsub := b.Subscribe(func(ev Event) { got = append(got, ev) })

	b.Publish(Lifecycle("r1", PhaseStart))
	b.Publish(Lifecycle("r1", PhaseEnd))
	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Phase != PhaseStart || got[1].Phase != PhaseEnd {
		t.Fatalf("phases = %v %v, want start end", got[0].Phase, got[1].Phase)
	}
	if got[0].Stream != StreamLifecycle {
		t.Fatalf("stream = %q, want %q", got[0].Stream, StreamLifecycle)
	}

	unsub()
	b.Publish(Lifecycle("r1", PhaseError))
	if len(got) != 2 {
		t.Fatalf("received event after unsubscribe")
	}
	// Double unsubscribe must not panic.
	unsub()
}

func TestBusDeliveryOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.Subscribe(func(Event) { order = append(order, 1) })
	b.Subscribe(func(Event) { order = append(order, 2) })
	b.Subscribe(func(Event) { order = append(order, 3) })

	b.Publish(Lifecycle("r1", PhaseEnd))
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("delivery order = %v, want [1 2 3]", order)
		}
	}
}
