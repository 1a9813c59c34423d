package signal

import (
	"fmt"
	"testing"
	"time"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestBusBuffersUntilSubscribed(t *testing.T) {
	bus := NewBus()
	first := bus.Publish(Signal{Name: GenerateDraft})
	second := bus.Publish(Signal{Name: GenerateDraft})
	sub := bus.Subscribe(GenerateDraft)
	defer sub.Close()
	if got := <-sub.Signals; got.ID != first.ID {
		t.Fatalf("expected first buffered signal, got %s", got.ID)
	}
	if got := <-sub.Signals; got.ID != second.ID {
		t.Fatalf("expected second buffered signal, got %s", got.ID)
	}
}

func TestBusStampsSignals(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := NewBus(WithNow(func() time.Time { return at }))
	sig := bus.Publish(Signal{Name: "  Publish-V1 "})
	if sig.Name != PublishV1 {
		t.Fatalf("expected normalized name, got %q", sig.Name)
	}
	if sig.ID == "" || sig.Sequence != 1 || !sig.EmittedAt.Equal(at) {
		t.Fatalf("unexpected stamp: %+v", sig)
	}
	next := bus.Publish(Signal{Name: PublishV1})
	if next.Sequence != 2 || next.ID == sig.ID {
		t.Fatalf("expected increasing sequence and fresh id, got %+v", next)
	}
}

func TestBusDedupeByID(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(ApproveDraft)
	defer sub.Close()
	sig := Signal{ID: "sig-1", Name: ApproveDraft}
	bus.Publish(sig)
	bus.Publish(sig)
	select {
	case got := <-sub.Signals:
		if got.ID != "sig-1" {
			t.Fatalf("unexpected signal %s", got.ID)
		}
	default:
		t.Fatalf("expected first delivery")
	}
	select {
	case <-sub.Signals:
		t.Fatalf("duplicate signal delivered")
	default:
	}
}

func TestBusWildcardReceivesEverything(t *testing.T) {
	bus := NewBus()
	all := bus.Subscribe(Wildcard)
	defer all.Close()
	one := bus.Subscribe(SelectTicket)
	defer one.Close()
	bus.Publish(Signal{Name: SelectTicket})
	bus.Publish(Signal{Name: OpenProvenance})
	if got := <-all.Signals; got.Name != SelectTicket {
		t.Fatalf("expected select-ticket first, got %s", got.Name)
	}
	if got := <-all.Signals; got.Name != OpenProvenance {
		t.Fatalf("expected open-provenance second, got %s", got.Name)
	}
	if got := <-one.Signals; got.Name != SelectTicket {
		t.Fatalf("named subscriber got %s", got.Name)
	}
	select {
	case got := <-one.Signals:
		t.Fatalf("named subscriber should not see %s", got.Name)
	default:
	}
}

func TestBusWildcardDrainsBacklogInOrder(t *testing.T) {
	bus := NewBus()
	bus.Publish(Signal{Name: PublishV1})
	bus.Publish(Signal{Name: SelectTicket})
	bus.Publish(Signal{Name: PublishV2})
	sub := bus.Subscribe(Wildcard)
	defer sub.Close()
	var last int64
	for i := 0; i < 3; i++ {
		got := <-sub.Signals
		if got.Sequence <= last {
			t.Fatalf("backlog out of order: %d after %d", got.Sequence, last)
		}
		last = got.Sequence
	}
}

func TestBusOverflowDropsOldest(t *testing.T) {
	logger := &captureLogger{}
	bus := NewBus(WithSubscriberCapacity(1), WithLogger(logger))
	sub := bus.Subscribe(PublishV2)
	defer sub.Close()
	bus.Publish(Signal{ID: "a", Name: PublishV2})
	bus.Publish(Signal{ID: "b", Name: PublishV2})
	if got := <-sub.Signals; got.ID != "b" {
		t.Fatalf("expected newest signal to survive, got %s", got.ID)
	}
	if len(logger.lines) != 1 {
		t.Fatalf("expected one drop log, got %v", logger.lines)
	}
}

func TestBusBacklogLimit(t *testing.T) {
	bus := NewBus(WithBacklogLimit(2))
	bus.Publish(Signal{ID: "1", Name: SelectTicket})
	bus.Publish(Signal{ID: "2", Name: SelectTicket})
	bus.Publish(Signal{ID: "3", Name: SelectTicket})
	sub := bus.Subscribe(SelectTicket)
	defer sub.Close()
	if got := <-sub.Signals; got.ID != "2" {
		t.Fatalf("expected oldest backlog entry dropped, got %s", got.ID)
	}
	if got := <-sub.Signals; got.ID != "3" {
		t.Fatalf("expected newest backlog entry, got %s", got.ID)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(ApproveDraft)
	sub.Close()
	if _, ok := <-sub.Signals; ok {
		t.Fatalf("expected closed channel")
	}
	bus.Publish(Signal{Name: ApproveDraft})
	sub.Close()
}
