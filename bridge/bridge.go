// Package bridge implements the C14 boundary component: a Unix
// domain socket accepting a single consumer that streams
// newline-delimited JSON creature snapshots, written into the world
// model with source=bridge so they are exempt from the scanner's
// staleness prune.
//
// Grounded on the teacher's relay.Listener accept loop (one active
// peer at a time, torn down and replaced on a new connection) and
// infrastructure/tunnel/session's single-slot bookkeeping, adapted
// from a TCP+crypto session to a local, unauthenticated, line-oriented
// JSON feed, since the bridge is a trusted local collaborator process
// rather than a network peer.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"otmitm/application/logging"
	"otmitm/domain/world"
)

// Snapshot is one line of the bridge's wire format: a single
// creature's authoritative state as seen by the external collaborator
// process.
type Snapshot struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Z      uint8  `json:"z"`
	Health uint8  `json:"health"`
}

// Listener accepts exactly one bridge consumer at a time on a Unix
// domain socket and feeds its snapshots into a world.Model.
type Listener struct {
	socketPath string
	world      *world.Model
	log        logging.Logger

	mu      sync.Mutex
	current net.Conn
}

// NewListener constructs a bridge Listener writing into m.
func NewListener(socketPath string, m *world.Model, log logging.Logger) *Listener {
	return &Listener{socketPath: socketPath, world: m, log: log}
}

// Serve listens on the configured Unix socket until ctx is cancelled.
// Each accepted connection preempts any prior one, matching the
// relay's single-slot-per-role rule.
func (l *Listener) Serve(ctx context.Context) error {
	if err := os.RemoveAll(l.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("bridge: remove stale socket %s: %w", l.socketPath, err)
	}
	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("bridge: listen on %s: %w", l.socketPath, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("bridge: accept: %w", err)
			}
		}
		l.preemptAndServe(conn)
	}
}

func (l *Listener) preemptAndServe(conn net.Conn) {
	l.mu.Lock()
	if l.current != nil {
		l.current.Close()
	}
	l.current = conn
	l.mu.Unlock()

	connID := uuid.New().String()
	l.log.Printf("bridge: connection %s accepted", connID)
	go l.readLoop(connID, conn)
}

func (l *Listener) readLoop(connID string, conn net.Conn) {
	defer conn.Close()
	defer l.log.Printf("bridge: connection %s closed", connID)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var snap Snapshot
		if err := json.Unmarshal(sc.Bytes(), &snap); err != nil {
			l.log.Printf("bridge: connection %s: malformed snapshot: %v", connID, err)
			continue
		}
		if snap.ID < 0x10000000 || snap.ID >= 0x80000000 {
			l.log.Printf("bridge: snapshot id %#x out of valid creature id range, dropped", snap.ID)
			continue
		}
		l.world.UpsertCreature(world.Creature{
			ID:       snap.ID,
			Name:     snap.Name,
			Position: world.Position{X: snap.X, Y: snap.Y, Z: snap.Z},
			Health:   snap.Health,
			Source:   world.SourceBridge,
		}, time.Now())
	}
	if err := sc.Err(); err != nil {
		l.log.Printf("bridge: connection read error: %v", err)
	}
}
