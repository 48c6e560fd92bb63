package scanner

import (
	"math/rand"
	"testing"
	"time"

	"otmitm/domain/world"
)

func TestScanPlayerStatsScenario(t *testing.T) {
	payload := []byte{
		0xA0,
		0xE8, 0x03, 0x00, 0x00, // hp = 1000
		0xD0, 0x07, 0x00, 0x00, // max_hp = 2000
		0x00, 0x00, 0x00, 0x00, // capacity = 0
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // experience = 0
		0x64, 0x00, // level = 100
		0x50,                   // level_percent = 80
		0xF4, 0x01, 0x00, 0x00, // mana = 500
		0xF4, 0x01, 0x00, 0x00, // max_mana = 500
		0x0A, // magic_level = 10
		0x50, // magic_percent = 80
		0x64, // soul = 100
		0x00, 0x00, // stamina = 0
	}
	m := world.New()
	Scan(m, payload, time.Now())

	stats := m.Stats()
	if stats.HP != 1000 || stats.MaxHP != 2000 || stats.Level != 100 ||
		stats.Mana != 500 || stats.MaxMana != 500 || stats.MagicLevel != 10 {
		t.Errorf("Stats() = %+v, want hp=1000 max_hp=2000 level=100 mana=500 max_mana=500 magic_level=10", stats)
	}
}

func TestScanCreatureHealthNeverCreates(t *testing.T) {
	payload := []byte{opCreatureHealth, 0xAA, 0xBB, 0xCC, 0xDD, 50}
	m := world.New()
	Scan(m, payload, time.Now())

	if _, found := m.Creature(0xDDCCBBAA); found {
		t.Error("Scan() created a creature from CREATURE_HEALTH on an unknown id")
	}
	if len(m.Creatures()) != 0 {
		t.Errorf("len(Creatures()) = %d, want 0", len(m.Creatures()))
	}
}

func TestScanCreatureHealthUpdatesKnown(t *testing.T) {
	m := world.New()
	now := time.Now()
	m.UpsertCreature(world.Creature{ID: 0xDDCCBBAA, Source: world.SourceScanner}, now)

	payload := []byte{opCreatureHealth, 0xAA, 0xBB, 0xCC, 0xDD, 42}
	Scan(m, payload, now)

	c, found := m.Creature(0xDDCCBBAA)
	if !found || c.Health != 42 {
		t.Errorf("Creature() = (%+v, %v), want health=42", c, found)
	}
}

func TestScanNeverPanicsOnRandomBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := world.New()
	for i := 0; i < 200; i++ {
		n := rng.Intn(300)
		payload := make([]byte, n)
		rng.Read(payload)
		Scan(m, payload, time.Now())
	}
}

func TestScanNeverPanicsOnEmptyPayload(t *testing.T) {
	m := world.New()
	Scan(m, nil, time.Now())
	Scan(m, []byte{}, time.Now())
}

func TestScanFloorChangeAdjustsZAndAppendsEvent(t *testing.T) {
	m := world.New()
	m.SetPosition(world.Position{X: 100, Y: 100, Z: 7})
	Scan(m, []byte{opFloorChangeDown}, time.Now())

	if m.Position().Z != 8 {
		t.Errorf("Position().Z = %d, want 8", m.Position().Z)
	}
	events := m.Events()
	if len(events) != 1 || events[0].Kind != world.EventFloorChangeDown {
		t.Errorf("Events() = %+v, want one EventFloorChangeDown", events)
	}
}

func TestScanMapDescriptionClearsCreaturesExceptBridge(t *testing.T) {
	m := world.New()
	now := time.Now()
	m.UpsertCreature(world.Creature{ID: 1, Source: world.SourceScanner}, now)
	m.UpsertCreature(world.Creature{ID: 2, Source: world.SourceBridge}, now)

	payload := []byte{opMapDescription, 150, 0, 150, 0, 7}
	Scan(m, payload, now)

	if _, found := m.Creature(1); found {
		t.Error("scanner creature survived MAP_DESCRIPTION")
	}
	if _, found := m.Creature(2); !found {
		t.Error("bridge creature was cleared by MAP_DESCRIPTION")
	}
	pos := m.Position()
	if pos != (world.Position{X: 150, Y: 150, Z: 7}) {
		t.Errorf("Position() = %+v, want {150 150 7}", pos)
	}
}

func TestScanTextMessageDetectsCantThrowThere(t *testing.T) {
	m := world.New()
	w := buildTextMessage(t, "You can't throw there.")
	Scan(m, w, time.Now())

	if m.CantThrowAt().IsZero() {
		t.Error("CantThrowAt() is zero, want a timestamp after matching message")
	}
}

func buildTextMessage(t *testing.T, text string) []byte {
	t.Helper()
	out := []byte{opTextMessage, 0x11}
	out = append(out, byte(len(text)), 0x00)
	out = append(out, []byte(text)...)
	return out
}
