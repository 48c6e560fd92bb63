package recording

import (
	"testing"
	"time"

	"otmitm/domain/recording"
	"otmitm/domain/world"
	"otmitm/wire/opcode"
)

func TestRecorderIgnoresWhenInactive(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 100, Y: 100, Z: 7})
	r := NewRecorder(w)

	r.Observe(opcode.ClientWalkNorth, opcode.NewReader(nil))

	rec := r.Stop()
	if len(rec.Waypoints) != 0 {
		t.Errorf("len(Waypoints) = %d, want 0 while inactive", len(rec.Waypoints))
	}
}

func TestRecorderCapturesWalkWaypoint(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 131, Y: 564, Z: 6})
	r := NewRecorder(w)

	r.Start("trip")
	r.Observe(opcode.ClientWalkWest, opcode.NewReader(nil))
	rec := r.Stop()

	if len(rec.Waypoints) != 1 {
		t.Fatalf("len(Waypoints) = %d, want 1", len(rec.Waypoints))
	}
	wp := rec.Waypoints[0]
	if wp.Kind != recording.KindWalk {
		t.Errorf("Kind = %v, want KindWalk", wp.Kind)
	}
	wantPos := recording.Position{X: 130, Y: 564, Z: 6}
	if wp.Pos != wantPos {
		t.Errorf("Pos = %+v, want %+v", wp.Pos, wantPos)
	}
	wantPlayerPos := recording.Position{X: 131, Y: 564, Z: 6}
	if wp.PlayerPos != wantPlayerPos {
		t.Errorf("PlayerPos = %+v, want %+v", wp.PlayerPos, wantPlayerPos)
	}
}

func TestRecorderCapturesUseItem(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 50, Y: 50, Z: 7})
	r := NewRecorder(w)
	r.Start("chop")

	body := opcode.NewWriter(0)
	body.WritePosition(opcode.Position{X: 300, Y: 300, Z: 7}).WriteU16(2554).WriteU8(1)
	r.Observe(opcode.ClientUseItem, opcode.NewReader(body.Bytes()))

	rec := r.Stop()
	if len(rec.Waypoints) != 1 {
		t.Fatalf("len(Waypoints) = %d, want 1", len(rec.Waypoints))
	}
	wp := rec.Waypoints[0]
	if wp.Kind != recording.KindUseItem || wp.ItemID != 2554 || wp.Pos.X != 300 {
		t.Errorf("wp = %+v", wp)
	}
}

func TestRecorderTickCapturesServerEvent(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 10, Y: 10, Z: 7})
	r := NewRecorder(w)
	r.Start("evt")
	time.Sleep(time.Millisecond)

	w.AppendEvent(world.Event{At: time.Now(), Kind: world.EventCancelWalk})
	r.Tick()

	rec := r.Stop()
	if len(rec.Waypoints) != 1 || rec.Waypoints[0].Kind != recording.KindServerEvent {
		t.Fatalf("Waypoints = %+v, want 1 KindServerEvent entry", rec.Waypoints)
	}
}

func TestRecorderTickDoesNotDuplicateOldEvents(t *testing.T) {
	w := world.New()
	w.AppendEvent(world.Event{At: time.Now(), Kind: world.EventCancelWalk})
	r := NewRecorder(w)
	r.Start("evt2")
	r.Tick()
	r.Tick()

	rec := r.Stop()
	if len(rec.Waypoints) != 0 {
		t.Errorf("len(Waypoints) = %d, want 0 (event predates Start)", len(rec.Waypoints))
	}
}
