package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "test-secret"

func TestBuildRouter_HealthAndReadyAlwaysMounted(t *testing.T) {
	r := BuildRouter(RouterConfig{
		Health: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		Ready:  func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /readyz, got %d", resp2.StatusCode)
	}
}

func TestBuildRouter_AdminRequiresBearer(t *testing.T) {
	admin := NewServer(&fakeRegistry{}, &fakeAlertEngine{}, nil)
	r := BuildRouter(RouterConfig{
		JWTSecret: testSecret,
		Admin:     admin,
		Health:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		Ready:     func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/admin/devices")
	if err != nil {
		t.Fatalf("GET /v1/admin/devices: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", resp.StatusCode)
	}
}
