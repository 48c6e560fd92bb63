package opcode

// Client opcodes recognized on the client->server leg. Values match
// the OT client/server wire protocol.
const (
	ClientLogout        uint8 = 0x14
	ClientPing          uint8 = 0x1E
	ClientAutoWalk      uint8 = 0x64
	ClientWalkNorth     uint8 = 0x65
	ClientWalkEast      uint8 = 0x66
	ClientWalkSouth     uint8 = 0x67
	ClientWalkWest      uint8 = 0x68
	ClientStopWalk      uint8 = 0x69
	ClientTurnNorth     uint8 = 0x6F
	ClientTurnEast      uint8 = 0x70
	ClientTurnSouth     uint8 = 0x71
	ClientTurnWest      uint8 = 0x72
	ClientWalkNE        uint8 = 0x6A
	ClientWalkSE        uint8 = 0x6B
	ClientWalkSW        uint8 = 0x6C
	ClientWalkNW        uint8 = 0x6D
	ClientMoveThing     uint8 = 0x78
	ClientUseItem       uint8 = 0x82
	ClientUseItemEx     uint8 = 0x83
	ClientUseOnCreature uint8 = 0x84
	ClientLook          uint8 = 0x8C
	ClientSay           uint8 = 0x96
	ClientAttack        uint8 = 0xA1
	ClientFollow        uint8 = 0xA2
	ClientSetFightModes uint8 = 0xA0
)

// WalkDirectionOpcodes lists the four cardinal single-step walk
// opcodes.
var WalkDirectionOpcodes = [4]uint8{ClientWalkNorth, ClientWalkEast, ClientWalkSouth, ClientWalkWest}

// BuildWalk returns a single-byte walk-direction message for one of
// the eight directions (dir must be one of the Client{Walk,Turn}*
// constants carrying direction semantics, or a diagonal).
func BuildWalk(dirOpcode uint8) []byte {
	return []byte{dirOpcode}
}

// BuildTurn returns a single-byte turn message.
func BuildTurn(dirOpcode uint8) []byte {
	return []byte{dirOpcode}
}

// BuildStopWalk returns the auto-walk-cancel message.
func BuildStopWalk() []byte {
	return []byte{ClientStopWalk}
}

// BuildPing returns the keepalive ping message.
func BuildPing() []byte {
	return []byte{ClientPing}
}

// BuildLogout returns the client logout message.
func BuildLogout() []byte {
	return []byte{ClientLogout}
}

// BuildSay builds a say message: opcode, talk type, optional receiver
// (for private messages, unused here), text.
func BuildSay(talkType uint8, text string) []byte {
	w := NewWriter(1 + 1 + 2 + len(text))
	w.WriteU8(ClientSay).WriteU8(talkType).WriteString(text)
	return w.Bytes()
}

// Thing identifies a map/container/inventory slot for move/use
// messages, per the OT "thing address" encoding.
type Thing struct {
	Pos      Position
	ItemID   uint16
	StackPos uint8
}

// BuildAttack builds a target-creature attack message.
func BuildAttack(creatureID uint32) []byte {
	w := NewWriter(5)
	w.WriteU8(ClientAttack).WriteU32(creatureID)
	return w.Bytes()
}

// BuildFollow builds a follow-creature message.
func BuildFollow(creatureID uint32) []byte {
	w := NewWriter(5)
	w.WriteU8(ClientFollow).WriteU32(creatureID)
	return w.Bytes()
}

// BuildUseItem builds a ground/inventory item use message.
func BuildUseItem(t Thing, stackIndex uint8) []byte {
	w := NewWriter(10)
	w.WriteU8(ClientUseItem).WritePosition(t.Pos).WriteU16(t.ItemID).WriteU8(t.StackPos).WriteU8(stackIndex)
	return w.Bytes()
}

// BuildUseItemEx builds an item-on-item use message (e.g. rune on
// target tile).
func BuildUseItemEx(from, to Thing) []byte {
	w := NewWriter(20)
	w.WriteU8(ClientUseItemEx)
	w.WritePosition(from.Pos).WriteU16(from.ItemID).WriteU8(from.StackPos)
	w.WritePosition(to.Pos).WriteU16(to.ItemID).WriteU8(to.StackPos)
	return w.Bytes()
}

// BuildUseOnCreature builds an item-on-creature use message.
func BuildUseOnCreature(from Thing, creatureID uint32) []byte {
	w := NewWriter(16)
	w.WriteU8(ClientUseOnCreature)
	w.WritePosition(from.Pos).WriteU16(from.ItemID).WriteU8(from.StackPos)
	w.WriteU32(creatureID)
	return w.Bytes()
}

// BuildLook builds a look-at-thing message.
func BuildLook(t Thing) []byte {
	w := NewWriter(8)
	w.WriteU8(ClientLook).WritePosition(t.Pos).WriteU16(t.ItemID).WriteU8(t.StackPos)
	return w.Bytes()
}

// BuildMoveThing builds a thing-move message between two addresses.
func BuildMoveThing(from Thing, to Position, count uint8) []byte {
	w := NewWriter(18)
	w.WriteU8(ClientMoveThing)
	w.WritePosition(from.Pos).WriteU16(from.ItemID).WriteU8(from.StackPos)
	w.WritePosition(to)
	w.WriteU8(count)
	return w.Bytes()
}

// BuildSetFightModes builds the fight-mode configuration message
// (attack/chase/secure-mode byte triplet).
func BuildSetFightModes(fight, chase, secure uint8) []byte {
	w := NewWriter(4)
	w.WriteU8(ClientSetFightModes).WriteU8(fight).WriteU8(chase).WriteU8(secure)
	return w.Bytes()
}
