// Package cli implements the C15 boundary component: a cobra command
// tree issuing every spec section 6 operator operation as an HTTP
// request against the running supervisor's dashboard control surface,
// plus a bubbletea live status TUI.
//
// Grounded on ehrlich-b-wingthing's cmd/wt/main.go cobra root command
// wired to internal/transport.Client, and on its
// internal/transport/client.go's thin JSON-over-HTTP request/response
// helpers (adapted here from a Unix-socket transport to one dialing
// the dashboard's TCP listen address, since the dashboard already
// binds that address for its own state/metrics surface).
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a running supervisor's dashboard control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client issuing requests against the dashboard
// listening at addr (e.g. "http://127.0.0.1:8089").
func NewClient(addr string) *Client {
	return &Client{
		baseURL: addr,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type controlResponse struct {
	OK         bool     `json:"ok"`
	Error      string   `json:"error,omitempty"`
	Recordings []string `json:"recordings,omitempty"`
}

func (c *Client) post(op string, payload any) (controlResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return controlResponse{}, fmt.Errorf("encode %s request: %w", op, err)
	}
	resp, err := c.http.Post(c.baseURL+"/api/control/"+op, "application/json", bytes.NewReader(body))
	if err != nil {
		return controlResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	return decodeControlResponse(op, resp)
}

func (c *Client) get(path string) (controlResponse, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return controlResponse{}, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeControlResponse(path, resp)
}

func decodeControlResponse(op string, resp *http.Response) (controlResponse, error) {
	var cr controlResponse
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cr, fmt.Errorf("%s: read response: %w", op, err)
	}
	if err := json.Unmarshal(data, &cr); err != nil {
		return cr, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !cr.OK {
		return cr, fmt.Errorf("%s: %s", op, cr.Error)
	}
	return cr, nil
}

// State mirrors dashboard.State so the CLI never imports the
// dashboard package directly (CLI and dashboard both sit at the
// boundary and communicate only over the HTTP wire format).
type State struct {
	Connected         bool            `json:"connected"`
	Player            PlayerState     `json:"player"`
	Creatures         []CreatureState `json:"creatures"`
	PacketsFromClient uint64          `json:"packets_from_client"`
	PacketsFromServer uint64          `json:"packets_from_server"`
	Actions           []ActionState   `json:"actions"`
	Cavebot           CavebotState    `json:"cavebot"`
}

// PlayerState mirrors dashboard.PlayerState.
type PlayerState struct {
	ID      uint32 `json:"id"`
	X       uint16 `json:"x"`
	Y       uint16 `json:"y"`
	Z       uint8  `json:"z"`
	HP      uint32 `json:"hp"`
	MaxHP   uint32 `json:"max_hp"`
	Mana    uint32 `json:"mana"`
	MaxMana uint32 `json:"max_mana"`
	Level   uint16 `json:"level"`
	Soul    uint8  `json:"soul"`
}

// CreatureState mirrors dashboard.CreatureState.
type CreatureState struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Z      uint8  `json:"z"`
	Health uint8  `json:"health"`
	Source string `json:"source"`
}

// ActionState mirrors dashboard.ActionState.
type ActionState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
}

// CavebotState mirrors dashboard.CavebotState.
type CavebotState struct {
	Running     bool  `json:"running"`
	FailedNodes []int `json:"failed_nodes"`
}

// GetStatus fetches the full current state snapshot.
func (c *Client) GetStatus() (State, error) {
	resp, err := c.http.Get(c.baseURL + "/api/state")
	if err != nil {
		return State{}, fmt.Errorf("get_status: %w", err)
	}
	defer resp.Body.Close()
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return State{}, fmt.Errorf("get_status: decode response: %w", err)
	}
	return st, nil
}

func (c *Client) StartBot() error { _, err := c.post("start_bot", struct{}{}); return err }

func (c *Client) Walk(direction uint8, steps int) error {
	_, err := c.post("walk", map[string]any{"direction": direction, "steps": steps})
	return err
}

func (c *Client) Turn(direction uint8) error {
	_, err := c.post("turn", map[string]any{"direction": direction})
	return err
}

func (c *Client) Say(text string) error {
	_, err := c.post("say", map[string]any{"text": text})
	return err
}

func (c *Client) Attack(creatureID uint32) error {
	_, err := c.post("attack", map[string]any{"creature_id": creatureID})
	return err
}

func (c *Client) Follow(creatureID uint32) error {
	_, err := c.post("follow", map[string]any{"creature_id": creatureID})
	return err
}

func (c *Client) UseItem(x, y uint16, z uint8, itemID uint16, stackPos, index uint8) error {
	_, err := c.post("use_item", map[string]any{
		"x": x, "y": y, "z": z, "item_id": itemID, "stack_pos": stackPos, "index": index,
	})
	return err
}

func (c *Client) MoveItem(fromX, fromY uint16, fromZ uint8, itemID uint16, stackPos uint8, toX, toY uint16, toZ uint8, count uint8) error {
	_, err := c.post("move_item", map[string]any{
		"x": fromX, "y": fromY, "z": fromZ, "item_id": itemID, "stack_pos": stackPos,
		"to_x": toX, "to_y": toY, "to_z": toZ, "count": count,
	})
	return err
}

func (c *Client) LookAt(x, y uint16, z uint8, itemID uint16, stackPos uint8) error {
	_, err := c.post("look_at", map[string]any{
		"x": x, "y": y, "z": z, "item_id": itemID, "stack_pos": stackPos,
	})
	return err
}

func (c *Client) SetFightModes(fight, chase, secure uint8) error {
	_, err := c.post("set_fight_modes", map[string]any{"fight": fight, "chase": chase, "secure": secure})
	return err
}

func (c *Client) Logout() error { _, err := c.post("logout", struct{}{}); return err }

func (c *Client) ToggleAction(name string, enabled bool) error {
	_, err := c.post("toggle_action", map[string]any{"name": name, "enabled": enabled})
	return err
}

func (c *Client) RestartAction(name string) error {
	_, err := c.post("restart_action", map[string]any{"name": name})
	return err
}

func (c *Client) StartRecording(name string) error {
	_, err := c.post("start_recording", map[string]any{"name": name})
	return err
}

func (c *Client) StopRecording() error { _, err := c.post("stop_recording", struct{}{}); return err }

func (c *Client) PlayRecording(name string, loop bool) error {
	_, err := c.post("play_recording", map[string]any{"name": name, "loop": loop})
	return err
}

func (c *Client) StopPlayback() error { _, err := c.post("stop_playback", struct{}{}); return err }

func (c *Client) ListRecordings() ([]string, error) {
	resp, err := c.get("/api/control/list_recordings")
	if err != nil {
		return nil, err
	}
	return resp.Recordings, nil
}

func (c *Client) DeleteRecording(name string) error {
	_, err := c.post("delete_recording", map[string]any{"name": name})
	return err
}
