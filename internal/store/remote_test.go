package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fakeyudi/pomosync/internal/state"
)

func TestRemoteFetchEmptyMeansNoState(t *testing.T) {
	for _, body := range []string{`{}`, ` {} `, `null`, ``} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		c := NewRemoteClient(srv.URL, "", srv.Client())
		snap, err := c.Fetch(context.Background())
		srv.Close()
		if err != nil {
			t.Errorf("Fetch(%q): %v", body, err)
		}
		if snap != nil {
			t.Errorf("Fetch(%q) = %+v, want nil", body, snap)
		}
	}
}

func TestRemoteFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/state" {
			http.Error(w, "unexpected", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"pomodorosCompleted": 9, "achievements": ["first"]}`)
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL+"/", "", srv.Client())
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap == nil || snap.PomodorosCompleted != 9 {
		t.Fatalf("Fetch = %+v, want pomodorosCompleted 9", snap)
	}
	if snap.Settings.WorkDuration != 25 {
		t.Errorf("remote snapshot should be overlaid on defaults, got WorkDuration %d", snap.Settings.WorkDuration)
	}
}

func TestRemoteFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"corrupt body", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"sessions": 12`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			snap, err := NewRemoteClient(srv.URL, "", srv.Client()).Fetch(context.Background())
			if err == nil {
				t.Error("expected error")
			}
			if snap != nil {
				t.Errorf("snap = %+v, want nil", snap)
			}
		})
	}
}

func TestRemoteFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := NewRemoteClient(url, "", nil).Fetch(context.Background()); err == nil {
		t.Error("expected error from a closed server")
	}
}

func TestRemotePushStripsTransientFields(t *testing.T) {
	var gotBody map[string]json.RawMessage
	var gotDevice, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotDevice = r.Header.Get(DeviceHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	snap := state.Defaults()
	snap.PomodorosCompleted = 2
	end := int64(99)
	snap.TimerEndTime = &end

	c := NewRemoteClient(srv.URL, "device-1", srv.Client())
	if err := c.Push(context.Background(), snap); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotDevice != "device-1" {
		t.Errorf("device header = %q", gotDevice)
	}
	if _, ok := gotBody["timerEndTime"]; ok {
		t.Error("pushed body contains timerEndTime")
	}
	if string(gotBody["pomodorosCompleted"]) != "2" {
		t.Errorf("pomodorosCompleted = %s", gotBody["pomodorosCompleted"])
	}
	if snap.TimerEndTime == nil {
		t.Error("Push modified the caller's snapshot")
	}
}

func TestRemotePushNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"db down"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	err := NewRemoteClient(srv.URL, "", srv.Client()).Push(context.Background(), state.Defaults())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Push err = %v, want 503 status error", err)
	}
}
