// Package bot defines BotContext, the capability surface every
// automation task runs against: read-only views of the world model
// plus helpers to inject payloads, say text, walk, and sleep
// cancellation-safely.
package bot

import (
	"context"
	"time"

	"otmitm/application/logging"
	"otmitm/domain/world"
	"otmitm/wire/opcode"
)

// Injector is the narrow surface a task needs to push a synthetic
// payload toward the client or the server; relay.Listener implements
// it without this package importing relay.
type Injector interface {
	InjectToServer(payload []byte)
	InjectToClient(payload []byte)
}

// Context is the capability set passed into every task's Run method.
type Context struct {
	World    *world.Model
	Injector Injector
	Log      logging.Logger
}

// Say sends a talk-type message as the bot's player.
func (c *Context) Say(talkType uint8, text string) {
	c.Injector.InjectToServer(opcode.BuildSay(talkType, text))
}

// Walk sends a single-step walk in the given direction opcode.
func (c *Context) Walk(dirOpcode uint8) {
	c.Injector.InjectToServer(opcode.BuildWalk(dirOpcode))
}

// UseItem sends an item-use message.
func (c *Context) UseItem(t opcode.Thing, stackIndex uint8) {
	c.Injector.InjectToServer(opcode.BuildUseItem(t, stackIndex))
}

// UseItemEx sends an item-on-item use message.
func (c *Context) UseItemEx(from, to opcode.Thing) {
	c.Injector.InjectToServer(opcode.BuildUseItemEx(from, to))
}

// Attack sends an attack-target message.
func (c *Context) Attack(creatureID uint32) {
	c.Injector.InjectToServer(opcode.BuildAttack(creatureID))
}

// Follow sends a follow-target message.
func (c *Context) Follow(creatureID uint32) {
	c.Injector.InjectToServer(opcode.BuildFollow(creatureID))
}

// Sleep suspends for d or until ctx is cancelled, whichever comes
// first, returning ctx.Err() on cancellation. Every task MUST sleep
// through this helper rather than time.Sleep so cancellation is
// respected at every suspension point.
func (c *Context) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectorAdapter adapts a relay.Listener-shaped target function pair
// into the Injector interface, avoiding an import cycle between bot
// and relay.
type InjectorAdapter struct {
	ToServer func(payload []byte)
	ToClient func(payload []byte)
}

func (a InjectorAdapter) InjectToServer(payload []byte) { a.ToServer(payload) }
func (a InjectorAdapter) InjectToClient(payload []byte) { a.ToClient(payload) }
