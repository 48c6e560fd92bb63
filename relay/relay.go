// Package relay implements the C6 relay core: two listening servers
// (login port, game port), each holding at most one active client
// session, full-duplex frame relaying with an injection queue, and a
// preemption rule that tears down an old session the instant a new
// connection arrives.
//
// Grounded on the teacher's infrastructure/routing_layer/
// client_routing/router.go errgroup pairing (one goroutine per
// direction, joined with errgroup.WithContext) and infrastructure/
// tunnel/session/repository.go's single-slot session bookkeeping,
// adapted from a multi-peer map to a single preemptible slot since
// this proxy serves exactly one game client at a time.
package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"otmitm/application/logging"
	"otmitm/crypto/rsautil"
	"otmitm/wire/frame"
	"otmitm/wire/login"
	"otmitm/wire/opcode"
	"otmitm/wire/session"
)

// Role distinguishes the login-port listener from the game-port one.
type Role int

const (
	RoleLogin Role = iota
	RoleGame
)

// Target identifies which socket an injected payload should be sent
// to.
type Target int

const (
	TargetClient Target = iota
	TargetServer
)

// Injection is one entry on the injection queue.
type Injection struct {
	Target  Target
	Payload []byte
}

// ClientObserver is invoked synchronously, in registration order, for
// every opcode found in a decrypted client->server frame.
type ClientObserver func(opc uint8, r *opcode.Reader)

// ServerScanner is invoked with the full decrypted server->client
// payload; it is the packet scanner's entry point (C8), kept as an
// interface here so relay has no import-time dependency on it.
type ServerScanner func(payload []byte, now time.Time)

// Stats holds the monotonic observability counters.
type Stats struct {
	mu                sync.Mutex
	PacketsFromClient uint64
	PacketsFromServer uint64
}

func (s *Stats) incClient() {
	s.mu.Lock()
	s.PacketsFromClient++
	s.mu.Unlock()
}

func (s *Stats) incServer() {
	s.mu.Lock()
	s.PacketsFromServer++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() (client, server uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PacketsFromClient, s.PacketsFromServer
}

// Config carries everything a Listener needs to dial upstream and
// decode login frames.
type Config struct {
	ListenAddr     string
	UpstreamAddr   string
	RSAKeys        []rsautil.Key
	ServerIPToHide net.IP
	LoginTimeout   time.Duration
}

// Listener owns one TCP listener (login or game port) and enforces
// the single-active-session rule: a new accepted connection preempts
// whatever session is currently running.
type Listener struct {
	role  Role
	cfg   Config
	log   logging.Logger
	stats *Stats

	observers    []ClientObserver
	scanner      ServerScanner
	onLogin      func()
	onDisconnect func()

	mu      sync.Mutex
	current *activeSession
}

type activeSession struct {
	cancel context.CancelFunc
	done   chan struct{}
	inject chan Injection
}

// Inject submits a payload onto the currently active session's
// injection queue. It is a no-op if no session is active; the caller
// (a task running under BotContext) is expected to check session
// liveness through the world model rather than an error return here.
func (l *Listener) Inject(inj Injection) {
	l.mu.Lock()
	cur := l.current
	l.mu.Unlock()
	if cur == nil {
		return
	}
	select {
	case cur.inject <- inj:
	default:
	}
}

// NewListener constructs a Listener for the given role.
func NewListener(role Role, cfg Config, log logging.Logger, stats *Stats) *Listener {
	return &Listener{role: role, cfg: cfg, log: log, stats: stats}
}

// AddObserver registers a client-packet observer, invoked for every
// opcode parsed out of a decrypted client->server frame.
func (l *Listener) AddObserver(o ClientObserver) {
	l.observers = append(l.observers, o)
}

// SetScanner installs the server->client payload scanner.
func (l *Listener) SetScanner(s ServerScanner) {
	l.scanner = s
}

// SetOnLoginSuccess installs a callback fired once, the instant the
// session transitions to logged_in (first server frame after the
// login key was captured).
func (l *Listener) SetOnLoginSuccess(f func()) {
	l.onLogin = f
}

// SetOnDisconnect installs a callback fired every time a session ends,
// whether by the client disconnecting, an upstream error, or
// preemption by a new incoming connection. The dashboard's Connected
// field and the task host's per-session state both key off this.
func (l *Listener) SetOnDisconnect(f func()) {
	l.onDisconnect = f
}

// Serve accepts connections until ctx is cancelled, running exactly
// one session at a time and preempting the previous one on a new
// accept.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.preemptAndStart(ctx, conn)
	}
}

func (l *Listener) preemptAndStart(ctx context.Context, clientConn net.Conn) {
	l.mu.Lock()
	if l.current != nil {
		l.current.cancel()
		prev := l.current.done
		l.mu.Unlock()
		select {
		case <-prev:
		case <-time.After(2 * time.Second):
		}
		l.mu.Lock()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	inject := make(chan Injection, 64)
	l.current = &activeSession{cancel: cancel, done: done, inject: inject}
	l.mu.Unlock()

	go func() {
		defer close(done)
		defer clientConn.Close()
		if err := l.runSession(sessionCtx, clientConn, inject); err != nil {
			l.log.Printf("relay: session ended: %v", err)
		}
		if l.onDisconnect != nil {
			l.onDisconnect()
		}
	}()
}

func (l *Listener) runSession(ctx context.Context, clientConn net.Conn, injectQueue chan Injection) error {
	serverConn, err := net.Dial("tcp", l.cfg.UpstreamAddr)
	if err != nil {
		return err
	}
	defer serverConn.Close()

	sess := session.New()
	keyed := make(chan struct{})

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return l.clientToServer(gctx, clientConn, serverConn, sess, injectQueue, keyed)
	})
	grp.Go(func() error {
		return l.serverToClient(gctx, serverConn, clientConn, sess, keyed)
	})
	grp.Go(func() error {
		return l.injector(gctx, clientConn, serverConn, sess, injectQueue)
	})
	grp.Go(func() error {
		select {
		case <-keyed:
			return nil
		case <-time.After(l.loginTimeout()):
			return errors.New("relay: login-stall timeout")
		case <-gctx.Done():
			return nil
		}
	})

	return grp.Wait()
}

func (l *Listener) loginTimeout() time.Duration {
	if l.cfg.LoginTimeout > 0 {
		return l.cfg.LoginTimeout
	}
	return 120 * time.Second
}

// clientToServer reads client frames, extracts the login key from the
// first one, decrypts a copy to feed observers once keyed, and
// forwards the original frame unmodified.
func (l *Listener) clientToServer(ctx context.Context, clientConn, serverConn net.Conn, sess *session.Session, injectQueue chan Injection, keyed chan struct{}) error {
	first := true
	for {
		if ctx.Err() != nil {
			return nil
		}
		body, err := frame.Read(clientConn)
		if err != nil {
			return err
		}
		if body == nil {
			return nil
		}

		if first {
			first = false
			k, err := login.ExtractKey(body, l.cfg.RSAKeys...)
			if err != nil {
				l.log.Printf("relay: login key extraction failed: %v", err)
			} else {
				sess.SetKey(k)
				close(keyed)
			}
		}

		l.stats.incClient()

		if sess.Keyed() {
			if inner, err := sess.Decrypt(body); err == nil && inner != nil {
				l.dispatchObservers(inner)
			}
		}

		if err := frame.Write(serverConn, body); err != nil {
			return err
		}
	}
}

func (l *Listener) dispatchObservers(inner []byte) {
	if len(inner) == 0 {
		return
	}
	r := opcode.NewReader(inner)
	opc, err := r.ReadU8()
	if err != nil {
		return
	}
	for _, obs := range l.observers {
		func() {
			defer func() { recover() }()
			obs(opc, opcode.NewReader(inner[1:]))
		}()
	}
}

// serverToClient reads server frames, transitions to logged_in on the
// first post-key-capture frame, decrypts a copy for the scanner, and
// forwards the frame — rewritten in place on a login-role listener's
// first reply (the character list carrying the real game server's
// address) per the login interceptor (C5).
func (l *Listener) serverToClient(ctx context.Context, serverConn, clientConn net.Conn, sess *session.Session, keyed chan struct{}) error {
	announced := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		body, err := frame.Read(serverConn)
		if err != nil {
			return err
		}
		if body == nil {
			return nil
		}

		l.stats.incServer()

		select {
		case <-keyed:
			first := !announced
			if !announced {
				announced = true
				if l.onLogin != nil {
					l.onLogin()
				}
			}
			if inner, err := sess.Decrypt(body); err == nil && inner != nil {
				if l.scanner != nil {
					l.scanner(inner, time.Now())
				}
				if first && l.role == RoleLogin && l.cfg.ServerIPToHide != nil {
					if rewritten, ok := login.RewriteServerIP(inner, l.cfg.ServerIPToHide); ok {
						if reframed, err := sess.Encrypt(rewritten); err == nil {
							body = reframed
						} else {
							l.log.Printf("relay: login reply re-encrypt failed: %v", err)
						}
					} else {
						l.log.Printf("relay: login reply carried no server IP to rewrite")
					}
				}
			}
		default:
		}

		if err := frame.Write(clientConn, body); err != nil {
			return err
		}
	}
}

// injector serializes injection-queue entries with respect to
// server-bound traffic, encrypting each with the current session key.
func (l *Listener) injector(ctx context.Context, clientConn, serverConn net.Conn, sess *session.Session, injectQueue chan Injection) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case inj := <-injectQueue:
			if !sess.Keyed() {
				continue
			}
			body, err := sess.Encrypt(inj.Payload)
			if err != nil {
				continue
			}
			var dst net.Conn
			if inj.Target == TargetServer {
				dst = serverConn
			} else {
				dst = clientConn
			}
			if err := frame.Write(dst, body); err != nil {
				return err
			}
		}
	}
}
