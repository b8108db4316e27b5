/*
Copyright © 2025 the galvoscan authors.
This file is part of galvoscan.

galvoscan is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

galvoscan is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with galvoscan.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/galvoscan/scan"
	"github.com/spatialmodel/galvoscan/sim"
)

func testServer(t *testing.T, delays sim.DelayPolicy) (*Server, *httptest.Server) {
	cfg := scan.DefaultConfig()
	cfg.ROISize = 20
	cfg.Delays = delays
	cfg.Seed = 1
	log := logrus.New()
	log.Out = io.Discard
	session, err := scan.NewSession(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	s := New(session, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.cancelRun()
		ts.Close()
	})
	return s, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestHealth(t *testing.T) {
	_, ts := testServer(t, sim.DelayPolicy{})
	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
}

func TestRegion(t *testing.T) {
	_, ts := testServer(t, sim.DelayPolicy{})
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "vertices", body: `{"vertices":[[0,0],[10,0],[0,10]]}`, status: http.StatusOK},
		{name: "rect", body: `{"rect":[[2,2],[5,5]]}`, status: http.StatusOK},
		{name: "one corner", body: `{"rect":[[2,2]]}`, status: http.StatusBadRequest},
		{name: "too few", body: `{"vertices":[[0,0],[1,1]]}`, status: http.StatusBadRequest},
		{name: "outside", body: `{"vertices":[[0,0],[30,0],[0,10]]}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/region", test.body)
			if resp.StatusCode != test.status {
				t.Errorf("status %d, want %d: %s", resp.StatusCode, test.status, body)
			}
		})
	}
	if resp, _ := do(t, http.MethodGet, ts.URL+"/region", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /region: status %d", resp.StatusCode)
	}
}

func TestGenerateAndThreshold(t *testing.T) {
	_, ts := testServer(t, sim.DelayPolicy{})
	if resp, _ := do(t, http.MethodGet, ts.URL+"/path.csv", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("path.csv before generation: status %d", resp.StatusCode)
	}
	do(t, http.MethodPost, ts.URL+"/region", `{"rect":[[2,2],[4,4]]}`)
	resp, body := do(t, http.MethodPost, ts.URL+"/generate", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate: status %d: %s", resp.StatusCode, body)
	}
	var pr pathResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatal(err)
	}
	want := pathResponse{Candidates: 9, Points: 9, ThresholdUM: 0.4, Jumps: []jumpJSON{}}
	if pr.Candidates != want.Candidates || pr.Points != want.Points || pr.ThresholdUM != want.ThresholdUM {
		t.Errorf("generate: %s", pretty.Diff(pr, want))
	}

	// Every move in a 3x3 block is one step of 0.2 µm.
	resp, body = do(t, http.MethodPut, ts.URL+"/threshold", `{"threshold":"0.1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("threshold: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatal(err)
	}
	if pr.ThresholdUM != 0.1 || len(pr.Jumps) != 8 {
		t.Errorf("threshold: got %+v", pr)
	}
	if math.Abs(pr.JumpTotalUM-1.6) > 1e-9 || pr.JumpMaxUM != 0.2 {
		t.Errorf("jump distances: total %v, longest %v", pr.JumpTotalUM, pr.JumpMaxUM)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/path.csv", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("path.csv: status %d", resp.StatusCode)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 10 || strings.TrimSpace(lines[0]) != "X_index,Y_index,X_um,Y_um" {
		t.Errorf("path.csv: %q", body)
	}
}

func TestSimulateConflict(t *testing.T) {
	s, ts := testServer(t, sim.DelayPolicy{Long: time.Hour, Short: time.Hour})
	if resp, _ := do(t, http.MethodPost, ts.URL+"/simulate", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("simulate without path: status %d", resp.StatusCode)
	}
	do(t, http.MethodPost, ts.URL+"/region", `{"rect":[[2,2],[4,4]]}`)
	do(t, http.MethodPost, ts.URL+"/generate", "")
	resp, body := do(t, http.MethodPost, ts.URL+"/simulate", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("simulate: status %d: %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, http.MethodPost, ts.URL+"/simulate", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("second simulate: status %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodPost, ts.URL+"/reset?clear=true", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset: status %d", resp.StatusCode)
	}
	if st := s.session.Simulator().State(); st != sim.Idle {
		t.Errorf("state after reset = %v", st)
	}
	if n := s.session.Accumulator().Filled(); n != 0 {
		t.Errorf("accumulator has %d samples after reset", n)
	}
}

func TestAccumulator(t *testing.T) {
	s, ts := testServer(t, sim.DelayPolicy{})
	do(t, http.MethodPost, ts.URL+"/region", `{"rect":[[2,2],[3,3]]}`)
	do(t, http.MethodPost, ts.URL+"/generate", "")
	if _, err := s.session.Simulator().RunSync(context.Background(), s.session.Result().Path, nil); err != nil {
		t.Fatal(err)
	}
	resp, body := do(t, http.MethodGet, ts.URL+"/accumulator", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var ar struct {
		Size   int          `json:"size"`
		Filled int          `json:"filled"`
		Values [][]*float64 `json:"values"`
	}
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatal(err)
	}
	if ar.Size != 20 || ar.Filled != 4 || len(ar.Values) != 20 {
		t.Fatalf("got size %d, filled %d, rows %d", ar.Size, ar.Filled, len(ar.Values))
	}
	if ar.Values[0][0] != nil {
		t.Errorf("unset cell = %v, want null", *ar.Values[0][0])
	}
	if v := ar.Values[3][2]; v == nil || *v < 10 || *v >= 100 {
		t.Errorf("cell (2, 3) = %v", v)
	}
}

func TestWebsocket(t *testing.T) {
	for _, test := range []struct {
		name   string
		delays sim.DelayPolicy
	}{
		{name: "no delay", delays: sim.DelayPolicy{}},
		{name: "delayed", delays: sim.DelayPolicy{Long: 5 * time.Millisecond, Short: 5 * time.Millisecond}},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, ts := testServer(t, test.delays)
			do(t, http.MethodPost, ts.URL+"/region", `{"rect":[[2,2],[4,4]]}`)
			do(t, http.MethodPost, ts.URL+"/generate", "")

			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))

			var state stateMessage
			if err := conn.ReadJSON(&state); err != nil {
				t.Fatal(err)
			}
			if state.Type != "state" || state.Size != 20 || state.Running {
				t.Errorf("initial state: %+v", state)
			}

			if resp, body := do(t, http.MethodPost, ts.URL+"/simulate", ""); resp.StatusCode != http.StatusAccepted {
				t.Fatalf("simulate: status %d: %s", resp.StatusCode, body)
			}
			var seq int
			for {
				var msg struct {
					updateMessage
					Written int    `json:"written"`
					Total   int    `json:"total"`
					Error   string `json:"error"`
				}
				if err := conn.ReadJSON(&msg); err != nil {
					t.Fatal(err)
				}
				if msg.Type == "done" {
					if msg.Written != 9 || msg.Total != 9 || msg.Error != "" {
						t.Errorf("done: %+v", msg)
					}
					break
				}
				if msg.Type != "update" || msg.Seq != seq {
					t.Fatalf("message %d: %+v", seq, msg)
				}
				if msg.Value < 10 || msg.Value >= 100 {
					t.Errorf("update %d value %v", seq, msg.Value)
				}
				seq++
			}
			if seq != 9 {
				t.Errorf("got %d updates, want 9", seq)
			}
		})
	}
}
