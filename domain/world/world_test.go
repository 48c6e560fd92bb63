package world

import (
	"testing"
	"time"
)

func TestUpdateCreatureHealthNeverCreates(t *testing.T) {
	m := New()
	now := time.Now()
	if ok := m.UpdateCreatureHealth(42, 80, now); ok {
		t.Fatal("UpdateCreatureHealth() = true on unknown creature, want false")
	}
	if _, found := m.Creature(42); found {
		t.Fatal("UpdateCreatureHealth() created a creature record")
	}
}

func TestUpdateCreatureHealthUpdatesKnown(t *testing.T) {
	m := New()
	now := time.Now()
	m.UpsertCreature(Creature{ID: 7, Name: "Rat"}, now)
	if ok := m.UpdateCreatureHealth(7, 55, now); !ok {
		t.Fatal("UpdateCreatureHealth() = false on known creature")
	}
	c, _ := m.Creature(7)
	if c.Health != 55 {
		t.Errorf("Health = %d, want 55", c.Health)
	}
}

func TestClearNonBridgeCreaturesExemptsBridge(t *testing.T) {
	m := New()
	now := time.Now()
	m.UpsertCreature(Creature{ID: 1, Source: SourceScanner}, now)
	m.UpsertCreature(Creature{ID: 2, Source: SourceBridge}, now)
	m.ClearNonBridgeCreatures()

	if _, found := m.Creature(1); found {
		t.Error("scanner-sourced creature survived ClearNonBridgeCreatures")
	}
	if _, found := m.Creature(2); !found {
		t.Error("bridge-sourced creature was pruned by ClearNonBridgeCreatures")
	}
}

func TestPruneStaleCreaturesExemptsBridge(t *testing.T) {
	m := New()
	stale := time.Now().Add(-200 * time.Second)
	m.UpsertCreature(Creature{ID: 1, Source: SourceScanner}, stale)
	m.UpsertCreature(Creature{ID: 2, Source: SourceBridge}, stale)

	m.PruneStaleCreatures(time.Now(), 120*time.Second)

	if _, found := m.Creature(1); found {
		t.Error("stale scanner creature was not pruned")
	}
	if _, found := m.Creature(2); !found {
		t.Error("bridge creature was pruned despite staleness exemption")
	}
}

func TestPruneStaleCreaturesThrottledToOnePerSecond(t *testing.T) {
	m := New()
	now := time.Now()
	m.UpsertCreature(Creature{ID: 1, Source: SourceScanner}, now.Add(-200*time.Second))
	m.PruneStaleCreatures(now, 120*time.Second)
	if _, found := m.Creature(1); found {
		t.Fatal("first prune pass did not remove stale creature")
	}

	m.UpsertCreature(Creature{ID: 2, Source: SourceScanner}, now.Add(-200*time.Second))
	m.PruneStaleCreatures(now.Add(100*time.Millisecond), 120*time.Second)
	if _, found := m.Creature(2); !found {
		t.Error("second prune pass within 1s ran and should not have")
	}
}

func TestTileUpdatesRingTrimsToCapacity(t *testing.T) {
	m := New()
	now := time.Now()
	for i := 0; i < tileUpdatesCap+10; i++ {
		m.AppendTileUpdate(TileUpdate{At: now, X: uint16(i), Y: 100, Z: 7})
	}
	got := m.TileUpdates()
	if len(got) != tileUpdatesCap {
		t.Fatalf("len(TileUpdates()) = %d, want %d", len(got), tileUpdatesCap)
	}
	if got[len(got)-1].X != uint16(tileUpdatesCap+9) {
		t.Errorf("ring did not keep the most recent entries")
	}
}

func TestAppendEventStampsCancelWalkTime(t *testing.T) {
	m := New()
	now := time.Now()
	m.AppendEvent(Event{At: now, Kind: EventCancelWalk})
	if !m.CancelWalkTime().Equal(now) {
		t.Errorf("CancelWalkTime() = %v, want %v", m.CancelWalkTime(), now)
	}
}

func TestAdjustPositionRelative(t *testing.T) {
	m := New()
	m.SetPosition(Position{X: 100, Y: 100, Z: 7})
	m.AdjustPosition(1, -1, 0)
	got := m.Position()
	if got != (Position{X: 101, Y: 99, Z: 7}) {
		t.Errorf("Position() = %+v, want {101 99 7}", got)
	}
}
