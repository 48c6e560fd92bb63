// Package scanner implements the C8 packet scanner: a sequential
// dispatch pass over a fully decrypted server->client payload,
// falling back to a brute-force byte search once the sequential pass
// hits an opcode it cannot skip past.
//
// New code off spec section 4.8; no teacher analogue exists for a
// bundled multi-message payload parser. The "stop on unrecognized,
// never panic" decode-loop shape follows the pack's rekal-dev
// codec-frame cursor idiom (wire/opcode), generalized here into a
// dispatch table with an explicit fallback pass rather than a single
// linear decode.
package scanner

import (
	"strings"
	"time"

	"otmitm/domain/world"
	"otmitm/wire/opcode"
)

// Server->client opcodes this scanner recognizes.
const (
	opPing              uint8 = 0x1D
	opLoginOrPending     uint8 = 0x0A
	opMapDescription     uint8 = 0x64
	opMapSliceNorth      uint8 = 0x65
	opMapSliceEast       uint8 = 0x66
	opMapSliceSouth      uint8 = 0x67
	opMapSliceWest       uint8 = 0x68
	opTileAddThing       uint8 = 0x6A
	opTileTransformThing uint8 = 0x6B
	opTileRemoveThing    uint8 = 0x6C
	opCreatureMove       uint8 = 0x6D
	opWorldLight         uint8 = 0x82
	opMagicEffect        uint8 = 0x83
	opAnimatedText       uint8 = 0x84
	opShootEffect        uint8 = 0x85
	opCreatureHealth     uint8 = 0x8C
	opCreatureLight      uint8 = 0x8D
	opCreatureSpeed      uint8 = 0x8F
	opCreatureSkull      uint8 = 0x90
	opCreatureParty      uint8 = 0x91
	opPlayerStats        uint8 = 0xA0
	opPlayerSkills       uint8 = 0xA1
	opPlayerIcons        uint8 = 0xA2
	opPlayerCancelAttack uint8 = 0xA3
	opTextMessage        uint8 = 0xB4
	opPlayerCancelWalk   uint8 = 0xB5
	opFloorChangeUp      uint8 = 0xBE
	opFloorChangeDown    uint8 = 0xBF
)

const cantThrowThereText = "can't throw there"

// Scan runs the full sequential + fallback pass over payload,
// mutating model. It never panics and always terminates: the
// sequential pass is bounded by payload length, and the fallback pass
// advances by at least one byte per iteration.
func Scan(model *world.Model, payload []byte, now time.Time) {
	defer func() { recover() }()

	stopAt := sequentialParse(model, payload, now)
	fallbackSearch(model, payload[stopAt:], now)
	model.PruneStaleCreatures(now, 120*time.Second)
}

// sequentialParse walks from offset 0, dispatching each opcode to its
// fixed-body handler. It returns the offset at which parsing stopped:
// either end of payload, an unrecognized opcode, or a handler that
// could not safely skip its variable body.
func sequentialParse(model *world.Model, payload []byte, now time.Time) int {
	r := opcode.NewReader(payload)
	for r.Remaining() > 0 {
		posBefore := r.Pos()
		opc, err := r.ReadU8()
		if err != nil {
			return posBefore
		}
		ok := dispatch(model, r, opc, now)
		if !ok {
			return posBefore
		}
	}
	return len(payload)
}

// dispatch consumes exactly one opcode message (opcode byte already
// read) and returns false if the sequential pass must stop here
// (variable-length body it cannot skip, or running out of bytes).
func dispatch(model *world.Model, r *opcode.Reader, opc uint8, now time.Time) bool {
	switch opc {
	case opPing, opPlayerCancelAttack:
		return true
	case opLoginOrPending:
		return handleLoginOrPending(model, r, now)
	case opMapDescription:
		handleMapDescription(model, r, now)
		return false // stops parser
	case opMapSliceNorth:
		return handleMapSlice(model, r, 0, -1)
	case opMapSliceEast:
		return handleMapSlice(model, r, 1, 0)
	case opMapSliceSouth:
		return handleMapSlice(model, r, 0, 1)
	case opMapSliceWest:
		return handleMapSlice(model, r, -1, 0)
	case opTileAddThing, opTileTransformThing, opTileRemoveThing:
		return handleTileEvent(model, r, now)
	case opCreatureMove:
		_, err := r.ReadBytes(11)
		return err == nil
	case opWorldLight:
		_, err := r.ReadBytes(2)
		return err == nil
	case opCreatureLight, opCreatureSpeed:
		_, err := r.ReadBytes(6)
		return err == nil
	case opMagicEffect, opShootEffect:
		n := 6
		if opc == opShootEffect {
			n = 11
		}
		_, err := r.ReadBytes(n)
		return err == nil
	case opAnimatedText:
		return handleAnimatedText(r)
	case opCreatureHealth:
		return handleCreatureHealth(model, r, now)
	case opCreatureSkull, opCreatureParty:
		_, err := r.ReadBytes(5)
		return err == nil
	case opPlayerStats:
		return handlePlayerStats(model, r, now)
	case opPlayerSkills:
		_, err := r.ReadBytes(14)
		return err == nil
	case opPlayerIcons:
		_, err := r.ReadBytes(2)
		return err == nil
	case opTextMessage:
		return handleTextMessage(model, r, now)
	case opPlayerCancelWalk:
		return handlePlayerCancelWalk(model, r, now)
	case opFloorChangeUp:
		model.AdjustPosition(0, 0, -1)
		model.AppendEvent(world.Event{At: now, Kind: world.EventFloorChangeUp})
		return false
	case opFloorChangeDown:
		model.AdjustPosition(0, 0, 1)
		model.AppendEvent(world.Event{At: now, Kind: world.EventFloorChangeDown})
		return false
	default:
		return false
	}
}

func handleLoginOrPending(model *world.Model, r *opcode.Reader, now time.Time) bool {
	playerID, err := r.ReadU32()
	if err != nil {
		return false
	}
	model.SetPlayerID(playerID)

	lookahead := 10
	if r.Remaining() < lookahead {
		lookahead = r.Remaining()
	}
	peekBytes, _ := r.ReadBytes(lookahead)
	for i, b := range peekBytes {
		if b != opMapDescription {
			continue
		}
		sub := opcode.NewReader(peekBytes[i+1:])
		pos, err := sub.ReadPosition()
		if err != nil || !validPosition(pos) {
			continue
		}
		model.ClearNonBridgeCreatures()
		model.SetPosition(world.Position{X: pos.X, Y: pos.Y, Z: pos.Z})
		break
	}
	return false // LOGIN_OR_PENDING body continues beyond what we can bound; stop
}

func handleMapDescription(model *world.Model, r *opcode.Reader, now time.Time) {
	pos, err := r.ReadPosition()
	if err != nil || !validPosition(pos) {
		return
	}
	model.SetPosition(world.Position{X: pos.X, Y: pos.Y, Z: pos.Z})
	model.ClearNonBridgeCreatures()
	model.SetLastMapTime(now)
}

func handleMapSlice(model *world.Model, r *opcode.Reader, dx, dy int) bool {
	model.AdjustPosition(dx, dy, 0)
	return false // variable tile data follows; stop
}

func handleTileEvent(model *world.Model, r *opcode.Reader, now time.Time) bool {
	pos, err := r.ReadPosition()
	if err != nil {
		return false
	}
	if _, err := r.ReadU8(); err != nil {
		return false
	}
	if validPosition(pos) {
		model.AppendTileUpdate(world.TileUpdate{At: now, X: pos.X, Y: pos.Y, Z: pos.Z})
	}
	return true
}

func handleAnimatedText(r *opcode.Reader) bool {
	if _, err := r.ReadPosition(); err != nil {
		return false
	}
	if _, err := r.ReadU8(); err != nil {
		return false
	}
	if _, err := r.ReadString(); err != nil {
		return false
	}
	return true
}

func handleCreatureHealth(model *world.Model, r *opcode.Reader, now time.Time) bool {
	id, err := r.ReadU32()
	if err != nil {
		return false
	}
	health, err := r.ReadU8()
	if err != nil {
		return false
	}
	model.UpdateCreatureHealth(id, health, now)
	return true
}

func handlePlayerStats(model *world.Model, r *opcode.Reader, now time.Time) bool {
	stats, ok := parsePlayerStats(r)
	if !ok {
		return false
	}
	model.SetStats(stats, now)
	return true
}

func parsePlayerStats(r *opcode.Reader) (world.PlayerStats, bool) {
	var s world.PlayerStats
	var err error
	if s.HP, err = r.ReadU32(); err != nil {
		return s, false
	}
	if s.MaxHP, err = r.ReadU32(); err != nil {
		return s, false
	}
	if s.Capacity, err = r.ReadU32(); err != nil {
		return s, false
	}
	if s.Experience, err = r.ReadU64(); err != nil {
		return s, false
	}
	if s.Level, err = r.ReadU16(); err != nil {
		return s, false
	}
	if s.LevelPercent, err = r.ReadU8(); err != nil {
		return s, false
	}
	if s.Mana, err = r.ReadU32(); err != nil {
		return s, false
	}
	if s.MaxMana, err = r.ReadU32(); err != nil {
		return s, false
	}
	if s.MagicLevel, err = r.ReadU8(); err != nil {
		return s, false
	}
	if s.MagicPercent, err = r.ReadU8(); err != nil {
		return s, false
	}
	if s.Soul, err = r.ReadU8(); err != nil {
		return s, false
	}
	if s.Stamina, err = r.ReadU16(); err != nil {
		return s, false
	}
	if !validPlayerStats(s) {
		return s, false
	}
	return s, true
}

func handleTextMessage(model *world.Model, r *opcode.Reader, now time.Time) bool {
	if _, err := r.ReadU8(); err != nil {
		return false
	}
	text, err := r.ReadString()
	if err != nil {
		return false
	}
	if strings.Contains(strings.ToLower(text), cantThrowThereText) {
		model.AppendEvent(world.Event{At: now, Kind: world.EventCantThrowThere})
	}
	return true
}

func handlePlayerCancelWalk(model *world.Model, r *opcode.Reader, now time.Time) bool {
	if _, err := r.ReadU8(); err != nil {
		return false
	}
	model.AppendEvent(world.Event{At: now, Kind: world.EventCancelWalk})
	return true
}

func validPosition(p opcode.Position) bool {
	return p.X >= 100 && p.X <= 65000 && p.Y >= 100 && p.Y <= 65000 && p.Z <= 15
}

func validPlayerStats(s world.PlayerStats) bool {
	return s.HP <= 50000 && s.Level >= 1 && s.Level <= 5000
}

// fallbackSearch brute-forces the remainder for PLAYER_STATS,
// PLAYER_ICONS, and TILE_TRANSFORM/ADD/REMOVE patterns, validating
// each candidate before accepting it. It always advances: on a match
// it skips past the matched body, on a miss it advances one byte.
func fallbackSearch(model *world.Model, rest []byte, now time.Time) {
	i := 0
	for i < len(rest) {
		switch {
		case rest[i] == opPlayerStats && i+1+36 <= len(rest):
			r := opcode.NewReader(rest[i+1:])
			if stats, ok := parsePlayerStats(r); ok {
				model.SetStats(stats, now)
				i += 1 + 36
				continue
			}
		case rest[i] == opPlayerIcons && i+1+2 <= len(rest):
			r := opcode.NewReader(rest[i+1:])
			icons, err := r.ReadU16()
			if err == nil && icons < 0x8000 {
				i += 1 + 2
				continue
			}
		case isTileOpcode(rest[i]) && i+1+6 <= len(rest):
			r := opcode.NewReader(rest[i+1:])
			pos, err := r.ReadPosition()
			if err == nil && validPosition(pos) {
				if _, err := r.ReadU8(); err == nil {
					model.AppendTileUpdate(world.TileUpdate{At: now, X: pos.X, Y: pos.Y, Z: pos.Z})
					i += 1 + 6
					continue
				}
			}
		}
		i++
	}
}

func isTileOpcode(b uint8) bool {
	return b == opTileAddThing || b == opTileTransformThing || b == opTileRemoveThing
}
