package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type fakeProvider struct{ state State }

func (f fakeProvider) BuildState() State { return f.state }

type fakeController struct {
	walked    bool
	lastDir   uint8
	lastSteps int
	failWith  error
}

func (f *fakeController) StartBot() error { return f.failWith }
func (f *fakeController) Walk(dirOpcode uint8, steps int) error {
	f.walked = true
	f.lastDir = dirOpcode
	f.lastSteps = steps
	return f.failWith
}
func (f *fakeController) Turn(uint8) error                                       { return f.failWith }
func (f *fakeController) Say(uint8, string) error                                { return f.failWith }
func (f *fakeController) Attack(uint32) error                                     { return f.failWith }
func (f *fakeController) Follow(uint32) error                                     { return f.failWith }
func (f *fakeController) UseItem(uint16, uint16, uint8, uint16, uint8, uint8) error { return f.failWith }
func (f *fakeController) MoveItem(uint16, uint16, uint8, uint16, uint8, uint16, uint16, uint8, uint8) error {
	return f.failWith
}
func (f *fakeController) LookAt(uint16, uint16, uint8, uint16, uint8) error { return f.failWith }
func (f *fakeController) SetFightModes(uint8, uint8, uint8) error           { return f.failWith }
func (f *fakeController) Logout() error                                    { return f.failWith }
func (f *fakeController) ToggleAction(string, bool) error                  { return f.failWith }
func (f *fakeController) RestartAction(string) error                       { return f.failWith }
func (f *fakeController) StartRecording(string) error                      { return f.failWith }
func (f *fakeController) StopRecording() error                             { return f.failWith }
func (f *fakeController) PlayRecording(string, bool) error                 { return f.failWith }
func (f *fakeController) StopPlayback() error                              { return f.failWith }
func (f *fakeController) ListRecordings() ([]string, error)                { return []string{"route1"}, f.failWith }
func (f *fakeController) DeleteRecording(string) error                     { return f.failWith }

func TestHandleStateReturnsProviderSnapshot(t *testing.T) {
	prov := fakeProvider{state: State{Connected: true, PacketsFromClient: 7}}
	s := NewServer(prov, &fakeController{}, nopLogger{})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var got State
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Connected || got.PacketsFromClient != 7 {
		t.Errorf("got %+v, want Connected=true PacketsFromClient=7", got)
	}
}

func TestControlWalkInvokesController(t *testing.T) {
	ctl := &fakeController{}
	s := NewServer(fakeProvider{}, ctl, nopLogger{})

	body := strings.NewReader(`{"direction":2,"steps":5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/control/walk", body)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if !ctl.walked || ctl.lastDir != 2 || ctl.lastSteps != 5 {
		f := ctl
		t.Fatalf("controller not invoked as expected: walked=%v dir=%d steps=%d", f.walked, f.lastDir, f.lastSteps)
	}
	var resp controlResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		t.Errorf("resp.OK = false, want true")
	}
}

func TestControlListRecordingsReturnsNames(t *testing.T) {
	s := NewServer(fakeProvider{}, &fakeController{}, nopLogger{})

	req := httptest.NewRequest(http.MethodGet, "/api/control/list_recordings", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp controlResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Recordings) != 1 || resp.Recordings[0] != "route1" {
		t.Errorf("Recordings = %v, want [route1]", resp.Recordings)
	}
}
