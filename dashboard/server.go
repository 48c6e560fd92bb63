package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"otmitm/application/logging"
)

// pushInterval is the WebSocket push cadence mandated by spec section
// 6 (10Hz).
const pushInterval = 100 * time.Millisecond

// Server is the dashboard's HTTP+WebSocket frontend.
type Server struct {
	provider   StateProvider
	controller Controller
	log        logging.Logger
	metrics    *Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]string
}

// NewServer constructs a dashboard server reading state from provider
// and driving operator commands through controller. controller is the
// same CLI surface the supervisor exposes in-process, so the CLI and
// the dashboard's own future UI share one control path.
func NewServer(provider StateProvider, controller Controller, log logging.Logger) *Server {
	s := &Server{
		provider:   provider,
		controller: controller,
		log:        log,
		metrics:    newMetrics(),
		clients:    make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	return s
}

// Router builds the mux.Router serving /api/state, /ws, /metrics, and
// the /api/control/* operator command surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.registerControlRoutes(r)
	return r
}

// Start blocks serving the dashboard on addr, and starts the
// background metrics-sampling loop.
func (s *Server) Start(addr string) error {
	go s.sampleMetricsLoop()
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.provider.BuildState())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("dashboard: websocket upgrade failed: %v", err)
		return
	}
	clientID := uuid.New().String()
	s.mu.Lock()
	s.clients[conn] = clientID
	s.mu.Unlock()
	s.log.Printf("dashboard: websocket client %s connected", clientID)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		s.log.Printf("dashboard: websocket client %s disconnected", clientID)
	}()

	// Drain reads so a client disconnect is observed promptly; the
	// dashboard is push-only, so incoming messages are never acted on.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(s.provider.BuildState()); err != nil {
			return
		}
	}
}

func (s *Server) sampleMetricsLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		st := s.provider.BuildState()
		s.metrics.sample(st)
	}
}
