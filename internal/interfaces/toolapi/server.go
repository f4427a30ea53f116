package toolapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chaingraph/internal/application"
)

// ToolService is the tool contract exposed to the orchestration layer.
type ToolService interface {
	FetchTransactions(ctx context.Context, req application.FetchRequest) (application.FetchResult, error)
	BuildGraph(ctx context.Context, req application.BuildRequest) (application.BuildResult, error)
}

type StorePinger interface {
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type Server struct {
	svc       ToolService
	store     StorePinger
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(svc ToolService, store StorePinger, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if svc == nil || store == nil {
		return nil, errors.New("tool server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{svc: svc, store: store, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/tools/fetch_transactions", s.handleFetchTransactions)
	mux.HandleFunc("/tools/build_transaction_graph", s.handleBuildGraph)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "artifact store not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type fetchRequest struct {
	SessionID    string `json:"session_id"`
	Address      string `json:"address"`
	Blockchain   string `json:"blockchain"`
	Limit        int    `json:"limit"`
	NetworkDepth int    `json:"network_depth"`
}

func (s *Server) handleFetchTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.metrics.IncFetchRequest()
	start := time.Now()
	result, err := s.svc.FetchTransactions(r.Context(), application.FetchRequest{
		Session:    req.SessionID,
		Address:    req.Address,
		Blockchain: req.Blockchain,
		Limit:      req.Limit,
		Depth:      req.NetworkDepth,
	})
	if err != nil {
		s.metrics.IncFetchError()
		respondServiceError(w, err)
		return
	}
	s.metrics.ObserveCrawl(time.Since(start), result.TotalTxCount)
	respondJSON(w, http.StatusOK, result)
}

type buildRequest struct {
	SessionID         string   `json:"session_id"`
	CacheKey          string   `json:"cache_key"`
	PrimaryAddress    string   `json:"primary_address"`
	Blockchain        string   `json:"blockchain"`
	AddressesToScreen []string `json:"addresses_to_screen"`
}

func (s *Server) handleBuildGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.metrics.IncBuildRequest()
	result, err := s.svc.BuildGraph(r.Context(), application.BuildRequest{
		Session:           req.SessionID,
		CacheKey:          req.CacheKey,
		PrimaryAddress:    req.PrimaryAddress,
		Blockchain:        req.Blockchain,
		AddressesToScreen: req.AddressesToScreen,
	})
	if err != nil {
		s.metrics.IncBuildError()
		respondServiceError(w, err)
		return
	}
	s.metrics.ObserveGraph(result.TotalNodes, result.TotalEdges)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	uptime := time.Since(snap.StartTime).Seconds()
	fmt.Fprintf(w, "chaingraph_uptime_seconds %.0f\n", uptime)
	fmt.Fprintf(w, "chaingraph_fetch_requests_total %d\n", snap.FetchRequests)
	fmt.Fprintf(w, "chaingraph_fetch_errors_total %d\n", snap.FetchErrors)
	fmt.Fprintf(w, "chaingraph_build_requests_total %d\n", snap.BuildRequests)
	fmt.Fprintf(w, "chaingraph_build_errors_total %d\n", snap.BuildErrors)
	fmt.Fprintf(w, "chaingraph_addresses_fetched_total %d\n", snap.AddressesFetched)
	fmt.Fprintf(w, "chaingraph_records_fetched_total %d\n", snap.RecordsFetched)
	fmt.Fprintf(w, "chaingraph_fetch_cache_hits_total %d\n", snap.CacheHits)
	fmt.Fprintf(w, "chaingraph_upstream_errors_total %d\n", snap.UpstreamErrors)
	fmt.Fprintf(w, "chaingraph_graphs_built_total %d\n", snap.GraphsBuilt)
	fmt.Fprintf(w, "chaingraph_graph_nodes_total %d\n", snap.NodesBuilt)
	fmt.Fprintf(w, "chaingraph_graph_edges_total %d\n", snap.EdgesBuilt)
	fmt.Fprintf(w, "chaingraph_last_crawl_seconds %.3f\n", snap.LastCrawlDuration.Seconds())
	fmt.Fprintf(w, "chaingraph_last_crawl_records %d\n", snap.LastCrawlRecords)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrCacheMiss):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "operation failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
