// Package dashboard implements the C12 boundary component: an
// HTTP+WebSocket server exposing the stable _build_state_json schema
// from spec section 6, plus a Prometheus /metrics endpoint.
//
// Grounded on Generativebots-ocx-backend-go-svc, which wires
// gorilla/mux + gorilla/websocket + prometheus/client_golang together
// for its own live dashboard: internal/api/server.go's mux.Router +
// method-scoped routes, and internal/websocket's register/unregister/
// broadcast hub pattern, adapted here from a push-on-event hub to a
// push-on-ticker one (the spec's cadence is a fixed 10Hz poll of
// current state, not discrete domain events).
package dashboard

// PlayerState mirrors the player fields of _build_state_json.
type PlayerState struct {
	ID       uint32 `json:"id"`
	X        uint16 `json:"x"`
	Y        uint16 `json:"y"`
	Z        uint8  `json:"z"`
	HP       uint32 `json:"hp"`
	MaxHP    uint32 `json:"max_hp"`
	Mana     uint32 `json:"mana"`
	MaxMana  uint32 `json:"max_mana"`
	Level    uint16 `json:"level"`
	Soul     uint8  `json:"soul"`
}

// CreatureState mirrors one entry of _build_state_json's creatures[].
type CreatureState struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Z      uint8  `json:"z"`
	Health uint8  `json:"health"`
	Source string `json:"source"`
}

// ActionState mirrors one entry of _build_state_json's actions[].
type ActionState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
}

// CavebotState mirrors _build_state_json's cavebot object.
type CavebotState struct {
	Running      bool  `json:"running"`
	FailedNodes  []int `json:"failed_nodes"`
}

// State is the complete stable JSON schema pushed over the dashboard's
// HTTP GET and WebSocket surfaces.
type State struct {
	Connected         bool            `json:"connected"`
	Player            PlayerState     `json:"player"`
	Creatures         []CreatureState `json:"creatures"`
	PacketsFromClient uint64          `json:"packets_from_client"`
	PacketsFromServer uint64          `json:"packets_from_server"`
	Actions           []ActionState   `json:"actions"`
	Cavebot           CavebotState    `json:"cavebot"`
}

// StateProvider supplies a fresh State snapshot on demand. The
// supervisor implements it by reading world.Model, relay.Stats,
// tasks.Host, and playback.Engine through copy-out accessors, so
// dashboard never imports any of those packages directly.
type StateProvider interface {
	BuildState() State
}
