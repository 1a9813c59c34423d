package scene

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kingrea/kmap/internal/clock"
)

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Unix(1730000000, 0))
	store := NewStore(WithClock(fake), WithRand(rand.New(rand.NewSource(5))))
	store.Resize(960, 640)
	return store, fake
}

func TestStoreGateFlashResetsAfterDelay(t *testing.T) {
	store, fake := newTestStore(t)
	store.SetPhase(PhaseApproved)
	if !store.Snapshot().GateFlashing {
		t.Fatalf("expected gate flashing after approval")
	}
	fake.Advance(GateFlashDuration - time.Millisecond)
	if !store.Snapshot().GateFlashing {
		t.Fatalf("gate flash ended early")
	}
	fake.Advance(time.Millisecond)
	if store.Snapshot().GateFlashing {
		t.Fatalf("gate flash did not end after %v", GateFlashDuration)
	}
}

func TestStoreSetPhaseCancelsPendingGateReset(t *testing.T) {
	store, fake := newTestStore(t)
	store.SetPhase(PhaseApproved)
	fake.Advance(300 * time.Millisecond)
	store.SetPhase(PhaseApproved)
	fake.Advance(300 * time.Millisecond)
	if !store.Snapshot().GateFlashing {
		t.Fatalf("first reset fired after a newer approval")
	}
	fake.Advance(200 * time.Millisecond)
	if store.Snapshot().GateFlashing {
		t.Fatalf("second reset did not fire")
	}

	store.SetPhase(PhaseApproved)
	store.SetPhase(PhasePublishingV1)
	if fake.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0 after leaving approved", fake.Pending())
	}
	if store.Snapshot().GateFlashing {
		t.Fatalf("gate still flashing after publishing")
	}
}

func TestStoreSnapshotsAreImmutable(t *testing.T) {
	store, _ := newTestStore(t)
	before := store.Snapshot()
	store.SetPhase(PhaseGenerating)
	for _, e := range before.Entities {
		if e.Active || e.Target != nil {
			t.Fatalf("earlier snapshot observed phase write on entity %d", e.ID)
		}
	}
	if before.Phase != PhaseIdle {
		t.Fatalf("earlier snapshot phase = %s, want idle", before.Phase)
	}
	if store.Snapshot() == before {
		t.Fatalf("SetPhase must install a new scene")
	}
}

func TestStoreCommitSkipsUnchangedAndStale(t *testing.T) {
	store, _ := newTestStore(t)
	base := store.Snapshot()
	if store.Commit(base, base.Entities, base.Sparks) {
		t.Fatalf("commit of identical content should be skipped")
	}
	entities, sparks := Step(base)
	store.SetPhase(PhaseApproved)
	if store.Commit(base, entities, sparks) {
		t.Fatalf("commit against a stale base should be skipped")
	}
	fresh := store.Snapshot()
	entities, sparks = Step(fresh)
	if !store.Commit(fresh, entities, sparks) {
		t.Fatalf("expected commit of advanced frame")
	}
	if got := store.Snapshot(); !EntitiesEqual(got.Entities, entities) || got.Phase != PhaseApproved {
		t.Fatalf("commit lost phase or entities")
	}
}

func TestStoreResizePopulatesOnceThenRescales(t *testing.T) {
	store := NewStore(WithClock(clock.NewFake(time.Unix(0, 0))), WithRand(rand.New(rand.NewSource(2))))
	store.Resize(0, 480)
	if len(store.Snapshot().Entities) != 0 {
		t.Fatalf("zero width must not populate")
	}
	store.Resize(960, 640)
	first := store.Snapshot()
	if got, want := len(first.Entities), EntityCount(960, 640); got != want {
		t.Fatalf("entities = %d, want %d", got, want)
	}
	store.Resize(1920, 640)
	second := store.Snapshot()
	if len(second.Entities) != len(first.Entities) {
		t.Fatalf("resize regenerated entities: %d -> %d", len(first.Entities), len(second.Entities))
	}
	for i := range first.Entities {
		if second.Entities[i].ID != first.Entities[i].ID {
			t.Fatalf("resize changed entity identity at %d", i)
		}
		if second.Entities[i].Pos.X != first.Entities[i].Pos.X*2 {
			t.Fatalf("entity %d x = %.2f, want %.2f", i, second.Entities[i].Pos.X, first.Entities[i].Pos.X*2)
		}
	}
}

func TestStoreResetRegeneratesAndNotifies(t *testing.T) {
	store, _ := newTestStore(t)
	var seen []Phase
	store.OnPhase(func(_, next Phase) { seen = append(seen, next) })
	store.SetPhase(PhaseGenerating)
	firstIDs := store.Snapshot().Entities[0].ID
	store.Reset()
	s := store.Snapshot()
	if s.Phase != PhaseIdle || s.ActiveID != 0 {
		t.Fatalf("reset left phase %s active %d", s.Phase, s.ActiveID)
	}
	if s.Entities[0].ID == firstIDs {
		t.Fatalf("reset reused entity ids")
	}
	if len(seen) != 2 || seen[0] != PhaseGenerating || seen[1] != PhaseIdle {
		t.Fatalf("observed phases %v", seen)
	}
}
