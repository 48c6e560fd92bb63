// Package recording implements the C10 recorder half: it subscribes
// to the relay's client-packet observer list and accumulates raw
// domain/recording.Waypoint entries, later handed to the compiler.
//
// New code off spec section 4.10; no teacher analogue (TunGo has no
// navigation domain). The observer-registration shape mirrors
// scanner.Scan's caller: a callback wired onto relay.Listener without
// either package importing the other.
package recording

import (
	"sync"
	"time"

	"otmitm/domain/recording"
	"otmitm/domain/world"
	"otmitm/wire/opcode"
)

// Recorder captures one named waypoint trace while active.
type Recorder struct {
	world *world.Model

	mu            sync.Mutex
	active        bool
	current       recording.Recording
	lastEventSeen time.Time
}

// NewRecorder constructs a Recorder bound to the given world model.
func NewRecorder(w *world.Model) *Recorder {
	return &Recorder{world: w}
}

// Start begins a new recording under name, discarding any prior
// in-progress trace.
func (r *Recorder) Start(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.current = recording.Recording{
		Name:          name,
		CreatedAt:     time.Now(),
		Version:       recording.CurrentVersion,
		StartPosition: toRecordingPos(r.world.Position()),
	}
	r.lastEventSeen = time.Now()
}

// Stop ends the current recording and returns a copy of it.
func (r *Recorder) Stop() recording.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	out := r.current
	out.Waypoints = append([]recording.Waypoint(nil), r.current.Waypoints...)
	return out
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func toRecordingPos(p world.Position) recording.Position {
	return recording.Position{X: p.X, Y: p.Y, Z: p.Z}
}

func directionOffset(opc uint8) (dx, dy int) {
	switch opc {
	case opcode.ClientWalkNorth:
		return 0, -1
	case opcode.ClientWalkEast:
		return 1, 0
	case opcode.ClientWalkSouth:
		return 0, 1
	case opcode.ClientWalkWest:
		return -1, 0
	case opcode.ClientWalkNE:
		return 1, -1
	case opcode.ClientWalkSE:
		return 1, 1
	case opcode.ClientWalkSW:
		return -1, 1
	case opcode.ClientWalkNW:
		return -1, -1
	}
	return 0, 0
}

func applyOffset(p recording.Position, dx, dy int) recording.Position {
	return recording.Position{X: uint16(int(p.X) + dx), Y: uint16(int(p.Y) + dy), Z: p.Z}
}

// Observe is a relay.ClientObserver: it records a waypoint for each
// walk, autowalk, use-item, and use-item-ex opcode, while a recording
// is active. cur is positioned immediately after the opcode byte.
func (r *Recorder) Observe(opc uint8, cur *opcode.Reader) {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if !active {
		return
	}

	now := time.Now()
	playerPos := toRecordingPos(r.world.Position())

	switch opc {
	case opcode.ClientWalkNorth, opcode.ClientWalkEast, opcode.ClientWalkSouth, opcode.ClientWalkWest,
		opcode.ClientWalkNE, opcode.ClientWalkSE, opcode.ClientWalkSW, opcode.ClientWalkNW:
		dx, dy := directionOffset(opc)
		wp := recording.Waypoint{At: now, Kind: recording.KindWalk, PlayerPos: playerPos, Pos: applyOffset(playerPos, dx, dy)}
		r.append(wp)

	case opcode.ClientAutoWalk:
		dest := playerPos
		count, err := cur.ReadU8()
		if err != nil {
			return
		}
		for i := uint8(0); i < count; i++ {
			dirByte, err := cur.ReadU8()
			if err != nil {
				break
			}
			dx, dy := directionOffset(dirByte)
			dest = applyOffset(dest, dx, dy)
		}
		r.append(recording.Waypoint{At: now, Kind: recording.KindAutoWalk, PlayerPos: playerPos, Pos: dest})

	case opcode.ClientUseItem:
		pos, err := cur.ReadPosition()
		if err != nil {
			return
		}
		itemID, err := cur.ReadU16()
		if err != nil {
			return
		}
		stackPos, err := cur.ReadU8()
		if err != nil {
			return
		}
		r.append(recording.Waypoint{
			At:        now,
			Kind:      recording.KindUseItem,
			PlayerPos: playerPos,
			Pos:       recording.Position{X: pos.X, Y: pos.Y, Z: pos.Z},
			ItemID:    itemID,
			StackPos:  stackPos,
		})

	case opcode.ClientUseItemEx:
		fromPos, err := cur.ReadPosition()
		if err != nil {
			return
		}
		fromItemID, err := cur.ReadU16()
		if err != nil {
			return
		}
		fromStackPos, err := cur.ReadU8()
		if err != nil {
			return
		}
		toPos, err := cur.ReadPosition()
		if err != nil {
			return
		}
		r.append(recording.Waypoint{
			At:        now,
			Kind:      recording.KindUseItemEx,
			PlayerPos: playerPos,
			Pos:       recording.Position{X: fromPos.X, Y: fromPos.Y, Z: fromPos.Z},
			ToPos:     recording.Position{X: toPos.X, Y: toPos.Y, Z: toPos.Z},
			ItemID:    fromItemID,
			StackPos:  fromStackPos,
		})
	}
}

// Tick appends one waypoint per server event observed since the last
// call, using the player's current position as the waypoint's
// PlayerPos. Call this periodically (the supervisor drives it on a
// short interval) so floor-change/cancel-walk events show up in the
// trace even without an accompanying client packet.
func (r *Recorder) Tick() {
	r.mu.Lock()
	active := r.active
	lastSeen := r.lastEventSeen
	r.mu.Unlock()
	if !active {
		return
	}

	newest := lastSeen
	playerPos := toRecordingPos(r.world.Position())
	var fresh []recording.Waypoint
	for _, ev := range r.world.Events() {
		if !ev.At.After(lastSeen) {
			continue
		}
		fresh = append(fresh, recording.Waypoint{At: ev.At, Kind: recording.KindServerEvent, PlayerPos: playerPos, Pos: playerPos})
		if ev.At.After(newest) {
			newest = ev.At
		}
	}
	if len(fresh) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.current.Waypoints = append(r.current.Waypoints, fresh...)
	r.lastEventSeen = newest
}

func (r *Recorder) append(wp recording.Waypoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.current.Waypoints = append(r.current.Waypoints, wp)
}
