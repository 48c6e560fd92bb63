package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Controller is the narrow write-side boundary the CLI drives,
// implemented by the supervisor the same way StateProvider is: so
// this package never imports application/bot, tasks, playback, or
// recording directly.
type Controller interface {
	StartBot() error
	Walk(dirOpcode uint8, steps int) error
	Turn(dirOpcode uint8) error
	Say(talkType uint8, text string) error
	Attack(creatureID uint32) error
	Follow(creatureID uint32) error
	UseItem(x, y uint16, z uint8, itemID uint16, stackPos, index uint8) error
	MoveItem(fromX, fromY uint16, fromZ uint8, itemID uint16, stackPos uint8, toX, toY uint16, toZ uint8, count uint8) error
	LookAt(x, y uint16, z uint8, itemID uint16, stackPos uint8) error
	SetFightModes(fight, chase, secure uint8) error
	Logout() error
	ToggleAction(name string, enabled bool) error
	RestartAction(name string) error
	StartRecording(name string) error
	StopRecording() error
	PlayRecording(name string, loop bool) error
	StopPlayback() error
	ListRecordings() ([]string, error)
	DeleteRecording(name string) error
}

// controlRequest is the envelope every POST /api/control/{op} request
// decodes; fields are interpreted per-operation, unused ones ignored.
type controlRequest struct {
	Direction  uint8    `json:"direction,omitempty"`
	Steps      int      `json:"steps,omitempty"`
	TalkType   uint8    `json:"talk_type,omitempty"`
	Text       string   `json:"text,omitempty"`
	CreatureID uint32   `json:"creature_id,omitempty"`
	X          uint16   `json:"x,omitempty"`
	Y          uint16   `json:"y,omitempty"`
	Z          uint8    `json:"z,omitempty"`
	ItemID     uint16   `json:"item_id,omitempty"`
	StackPos   uint8    `json:"stack_pos,omitempty"`
	Index      uint8    `json:"index,omitempty"`
	ToX        uint16   `json:"to_x,omitempty"`
	ToY        uint16   `json:"to_y,omitempty"`
	ToZ        uint8    `json:"to_z,omitempty"`
	Count      uint8    `json:"count,omitempty"`
	Fight      uint8    `json:"fight,omitempty"`
	Chase      uint8    `json:"chase,omitempty"`
	Secure     uint8    `json:"secure,omitempty"`
	Name       string   `json:"name,omitempty"`
	Enabled    bool     `json:"enabled,omitempty"`
	Loop       bool     `json:"loop,omitempty"`
}

type controlResponse struct {
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Recordings  []string `json:"recordings,omitempty"`
}

func (s *Server) registerControlRoutes(r *mux.Router) {
	post := func(path string, fn func(controlRequest) (controlResponse, error)) {
		r.HandleFunc(path, s.controlHandler(fn)).Methods(http.MethodPost)
	}

	post("/api/control/start_bot", func(controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.StartBot()
	})
	post("/api/control/walk", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Walk(req.Direction, req.Steps)
	})
	post("/api/control/turn", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Turn(req.Direction)
	})
	post("/api/control/say", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Say(req.TalkType, req.Text)
	})
	post("/api/control/attack", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Attack(req.CreatureID)
	})
	post("/api/control/follow", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Follow(req.CreatureID)
	})
	post("/api/control/use_item", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.UseItem(req.X, req.Y, req.Z, req.ItemID, req.StackPos, req.Index)
	})
	post("/api/control/move_item", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.MoveItem(req.X, req.Y, req.Z, req.ItemID, req.StackPos, req.ToX, req.ToY, req.ToZ, req.Count)
	})
	post("/api/control/look_at", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.LookAt(req.X, req.Y, req.Z, req.ItemID, req.StackPos)
	})
	post("/api/control/set_fight_modes", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.SetFightModes(req.Fight, req.Chase, req.Secure)
	})
	post("/api/control/logout", func(controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.Logout()
	})
	post("/api/control/toggle_action", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.ToggleAction(req.Name, req.Enabled)
	})
	post("/api/control/restart_action", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.RestartAction(req.Name)
	})
	post("/api/control/start_recording", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.StartRecording(req.Name)
	})
	post("/api/control/stop_recording", func(controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.StopRecording()
	})
	post("/api/control/play_recording", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.PlayRecording(req.Name, req.Loop)
	})
	post("/api/control/stop_playback", func(controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.StopPlayback()
	})
	post("/api/control/delete_recording", func(req controlRequest) (controlResponse, error) {
		return controlResponse{OK: true}, s.controller.DeleteRecording(req.Name)
	})
	r.HandleFunc("/api/control/list_recordings", func(w http.ResponseWriter, r *http.Request) {
		names, err := s.controller.ListRecordings()
		resp := controlResponse{OK: err == nil, Recordings: names}
		if err != nil {
			resp.Error = err.Error()
		}
		json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)
}

func (s *Server) controlHandler(fn func(controlRequest) (controlResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req controlRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		resp, err := fn(req)
		if err != nil {
			resp.OK = false
			resp.Error = err.Error()
			s.log.Printf("dashboard: control op %s failed: %v", r.URL.Path, err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
