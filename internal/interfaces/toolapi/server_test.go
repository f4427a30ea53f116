package toolapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chaingraph/internal/application"
)

type mockService struct {
	fetchResult application.FetchResult
	fetchErr    error
	buildResult application.BuildResult
	buildErr    error
	lastFetch   application.FetchRequest
	lastBuild   application.BuildRequest
}

func (m *mockService) FetchTransactions(ctx context.Context, req application.FetchRequest) (application.FetchResult, error) {
	m.lastFetch = req
	return m.fetchResult, m.fetchErr
}

func (m *mockService) BuildGraph(ctx context.Context, req application.BuildRequest) (application.BuildResult, error) {
	m.lastBuild = req
	return m.buildResult, m.buildErr
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func newTestServer(t *testing.T, svc *mockService, pinger *mockPinger) *Server {
	t.Helper()
	server, err := NewServer(svc, pinger, NewMetrics(), BuildInfo{Version: "test"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func TestFetchTransactionsEndpoint(t *testing.T) {
	svc := &mockService{fetchResult: application.FetchResult{
		CacheKey:      "0xaaa_ethereum_d2_l10",
		NormalTxCount: 3,
		TokenTxCount:  2,
		TotalTxCount:  5,
	}}
	server := newTestServer(t, svc, &mockPinger{})

	body := `{"session_id":"s1","address":"0xAAA","blockchain":"ethereum","limit":10,"network_depth":2}`
	req := httptest.NewRequest(http.MethodPost, "/tools/fetch_transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastFetch.Session != "s1" || svc.lastFetch.Address != "0xAAA" || svc.lastFetch.Depth != 2 {
		t.Errorf("request not mapped: %+v", svc.lastFetch)
	}

	var result application.FetchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response unreadable: %v", err)
	}
	if result.CacheKey != "0xaaa_ethereum_d2_l10" || result.TotalTxCount != 5 {
		t.Errorf("unexpected response %+v", result)
	}
}

func TestFetchTransactionsErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: address is required", application.ErrInvalidRequest), http.StatusBadRequest},
		{"internal failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(t, &mockService{fetchErr: tc.err}, &mockPinger{})
			req := httptest.NewRequest(http.MethodPost, "/tools/fetch_transactions", strings.NewReader(`{"session_id":"s1"}`))
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestBuildGraphCacheMissMapsToNotFound(t *testing.T) {
	svc := &mockService{buildErr: fmt.Errorf("%w: 0xaaa_ethereum_d2_l10", application.ErrCacheMiss)}
	server := newTestServer(t, svc, &mockPinger{})

	body := `{"session_id":"s1","cache_key":"0xaaa_ethereum_d2_l10","primary_address":"0xaaa"}`
	req := httptest.NewRequest(http.MethodPost, "/tools/build_transaction_graph", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBuildGraphEndpoint(t *testing.T) {
	svc := &mockService{buildResult: application.BuildResult{
		NetworkCacheKey:   "network_0xaaa_ethereum",
		TotalNodes:        4,
		TotalEdges:        3,
		TotalTransactions: 9,
	}}
	server := newTestServer(t, svc, &mockPinger{})

	body := `{"session_id":"s1","cache_key":"k","primary_address":"0xaaa","addresses_to_screen":["0xbbb"]}`
	req := httptest.NewRequest(http.MethodPost, "/tools/build_transaction_graph", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.lastBuild.AddressesToScreen) != 1 || svc.lastBuild.AddressesToScreen[0] != "0xbbb" {
		t.Errorf("screen list not mapped: %+v", svc.lastBuild)
	}
}

func TestToolEndpointsRejectNonPost(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockPinger{})
	for _, path := range []string{"/tools/fetch_transactions", "/tools/build_transaction_graph"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}

func TestReadyzReflectsStoreHealth(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockPinger{err: errors.New("down")})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	server = newTestServer(t, &mockService{}, &mockPinger{})
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsExposition(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockPinger{})

	// Drive one successful fetch so counters move.
	req := httptest.NewRequest(http.MethodPost, "/tools/fetch_transactions", strings.NewReader(`{"session_id":"s1","address":"0xaaa"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "chaingraph_fetch_requests_total 1") {
		t.Errorf("metrics missing fetch counter:\n%s", body)
	}
	if !strings.Contains(body, "chaingraph_uptime_seconds") {
		t.Errorf("metrics missing uptime:\n%s", body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	server := newTestServer(t, &mockService{}, &mockPinger{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var info BuildInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("version response unreadable: %v", err)
	}
	if info.Version != "test" {
		t.Errorf("unexpected version %q", info.Version)
	}
}
