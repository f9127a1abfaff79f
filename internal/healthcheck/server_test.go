// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package healthcheck

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStarting, "starting"},
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{Status(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func get(t *testing.T, mux *http.ServeMux, path string) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", ct)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return rec.Code, resp
}

func TestEndpointsFollowStatus(t *testing.T) {
	c := New()
	mux := http.NewServeMux()
	c.Register(mux)

	tests := []struct {
		status    Status
		healthz   int
		readyz    int
		livez     int
		wantReady bool
	}{
		{StatusStarting, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK, false},
		{StatusHealthy, http.StatusOK, http.StatusOK, http.StatusOK, true},
		{StatusUnhealthy, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			c.SetStatus(tt.status)

			if code, _ := get(t, mux, "/healthz"); code != tt.healthz {
				t.Errorf("/healthz = %d, want %d", code, tt.healthz)
			}
			if code, _ := get(t, mux, "/readyz"); code != tt.readyz {
				t.Errorf("/readyz = %d, want %d", code, tt.readyz)
			}
			if code, _ := get(t, mux, "/livez"); code != tt.livez {
				t.Errorf("/livez = %d, want %d", code, tt.livez)
			}
			if c.IsReady() != tt.wantReady {
				t.Errorf("IsReady() = %v, want %v", c.IsReady(), tt.wantReady)
			}
		})
	}
}

func TestReadyChecks(t *testing.T) {
	c := New()
	c.SetStatus(StatusHealthy)
	mux := http.NewServeMux()
	c.Register(mux)

	c.AddReadyCheck("thumbnail-bucket", func() error { return errors.New("not configured") })
	c.AddReadyCheck("aws", func() error { return nil })
	c.AddReadyCheck("harvest-role", func() error { return errors.New("not configured") })

	code, resp := get(t, mux, "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with failing checks, got %d", code)
	}
	want := []string{"harvest-role", "thumbnail-bucket"}
	if !reflect.DeepEqual(resp.Failing, want) {
		t.Errorf("Failing = %v, want %v", resp.Failing, want)
	}

	// Liveness ignores readiness checks.
	if code, _ := get(t, mux, "/livez"); code != http.StatusOK {
		t.Errorf("Expected /livez 200, got %d", code)
	}

	c.AddReadyCheck("thumbnail-bucket", func() error { return nil })
	c.AddReadyCheck("harvest-role", func() error { return nil })
	code, resp = get(t, mux, "/readyz")
	if code != http.StatusOK || !resp.Healthy || len(resp.Failing) != 0 {
		t.Errorf("Expected ready, got %d %+v", code, resp)
	}
}

func TestOnlyGetIsServed(t *testing.T) {
	c := New()
	c.SetStatus(StatusHealthy)
	mux := http.NewServeMux()
	c.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST, got %d", rec.Code)
	}
}
