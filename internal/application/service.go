package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chaingraph/internal/domain"
	"chaingraph/internal/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidRequest marks caller input the service refuses to act on.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCacheMiss marks a build request naming a cache key that was
	// never produced by a prior fetch. Not retried internally.
	ErrCacheMiss = errors.New("cache entry not found")
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type FetchRequest struct {
	Session    string
	Address    string
	Blockchain string
	Limit      int
	Depth      int
}

type FetchResult struct {
	CacheKey      string `json:"cache_key"`
	NormalTxCount int    `json:"normal_tx_count"`
	TokenTxCount  int    `json:"token_tx_count"`
	TotalTxCount  int    `json:"total_tx_count"`
}

type BuildRequest struct {
	Session           string
	CacheKey          string
	PrimaryAddress    string
	Blockchain        string
	AddressesToScreen []string
}

type BuildResult struct {
	NetworkCacheKey   string `json:"network_cache_key"`
	TotalNodes        int    `json:"total_nodes"`
	TotalEdges        int    `json:"total_edges"`
	TotalTransactions int    `json:"total_transactions"`
}

// Service implements the tool-facing contract: it runs crawls and
// graph builds, persists results in the artifact store, and hands
// opaque cache references back so responses stay small.
type Service struct {
	crawler  *Crawler
	store    ArtifactStore
	screener ScreeningPort
	events   EventPublisher
}

func NewService(crawler *Crawler, store ArtifactStore, screener ScreeningPort, publisher EventPublisher) (*Service, error) {
	if crawler == nil || store == nil {
		return nil, errors.New("crawler and artifact store are required")
	}
	return &Service{crawler: crawler, store: store, screener: screener, events: publisher}, nil
}

func (s *Service) FetchTransactions(ctx context.Context, req FetchRequest) (FetchResult, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return FetchResult{}, err
	}

	scope := BatchScope(req.Session)
	key := BatchKey(req.Address, req.Blockchain, req.Depth, req.Limit)

	if payload, ok, err := s.store.Get(ctx, scope, key); err != nil {
		return FetchResult{}, err
	} else if ok {
		var batch domain.TransactionBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return FetchResult{}, fmt.Errorf("corrupt batch artifact %s: %w", key, err)
		}
		slog.Info("serving batch from cache", "scope", scope, "key", key)
		return fetchResult(key, batch), nil
	}

	tracer := otel.Tracer("chaingraph/service")
	ctx, span := tracer.Start(ctx, "service.fetch_transactions")
	span.SetAttributes(
		attribute.String("address", strings.ToLower(req.Address)),
		attribute.String("blockchain", req.Blockchain),
		attribute.Int("depth", req.Depth),
		attribute.Int("limit", req.Limit),
	)
	defer span.End()

	batch, err := s.crawler.Crawl(ctx, CrawlRequest{
		PrimaryAddress:  req.Address,
		Blockchain:      req.Blockchain,
		Depth:           req.Depth,
		LimitPerAddress: req.Limit,
		Scope:           scope,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FetchResult{}, err
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		span.RecordError(err)
		return FetchResult{}, err
	}
	if err := s.store.Put(ctx, scope, key, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FetchResult{}, err
	}

	s.publish(ctx, events.Event{
		Type:        events.TypeCrawlCompleted,
		Session:     req.Session,
		Address:     strings.ToLower(req.Address),
		Blockchain:  req.Blockchain,
		Depth:       req.Depth,
		CacheKey:    key,
		RecordCount: batch.Total(),
	})

	return fetchResult(key, batch), nil
}

func (s *Service) BuildGraph(ctx context.Context, req BuildRequest) (BuildResult, error) {
	if strings.TrimSpace(req.Session) == "" {
		return BuildResult{}, fmt.Errorf("%w: session is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.CacheKey) == "" {
		return BuildResult{}, fmt.Errorf("%w: cache key is required", ErrInvalidRequest)
	}
	blockchain := req.Blockchain
	if strings.TrimSpace(blockchain) == "" {
		blockchain = "ethereum"
	}

	payload, ok, err := s.store.Get(ctx, BatchScope(req.Session), req.CacheKey)
	if err != nil {
		return BuildResult{}, err
	}
	if !ok {
		return BuildResult{}, fmt.Errorf("%w: %s", ErrCacheMiss, req.CacheKey)
	}
	var batch domain.TransactionBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return BuildResult{}, fmt.Errorf("corrupt batch artifact %s: %w", req.CacheKey, err)
	}

	tracer := otel.Tracer("chaingraph/service")
	ctx, span := tracer.Start(ctx, "service.build_graph")
	span.SetAttributes(
		attribute.String("address", strings.ToLower(req.PrimaryAddress)),
		attribute.String("blockchain", blockchain),
		attribute.Int("screen_list", len(req.AddressesToScreen)),
	)
	defer span.End()

	builder, err := NewGraphBuilder(req.PrimaryAddress, blockchain)
	if err != nil {
		return BuildResult{}, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	builder.AddBatch(batch)
	network := builder.Finalize(ctx, s.screener, req.AddressesToScreen)

	encoded, err := json.Marshal(network)
	if err != nil {
		span.RecordError(err)
		return BuildResult{}, err
	}
	networkKey := NetworkKey(req.PrimaryAddress, blockchain)
	if err := s.store.Put(ctx, NetworkScope(req.Session), networkKey, encoded); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BuildResult{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeGraphBuilt,
		Session:    req.Session,
		Address:    network.Metadata.PrimaryAddress,
		Blockchain: blockchain,
		CacheKey:   networkKey,
		NodeCount:  network.Metadata.TotalNodes,
		EdgeCount:  network.Metadata.TotalEdges,
	})

	return BuildResult{
		NetworkCacheKey:   networkKey,
		TotalNodes:        network.Metadata.TotalNodes,
		TotalEdges:        network.Metadata.TotalEdges,
		TotalTransactions: network.Metadata.TotalTransactions,
	}, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		event.TraceID = spanCtx.TraceID().String()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Warn("event publish failed", "type", event.Type, "session", event.Session, "err", err)
	}
}

func (r FetchRequest) withDefaults() FetchRequest {
	if strings.TrimSpace(r.Blockchain) == "" {
		r.Blockchain = "ethereum"
	}
	if r.Limit == 0 {
		r.Limit = 10
	}
	if r.Depth == 0 {
		r.Depth = 2
	}
	return r
}

func (r FetchRequest) validate() error {
	if strings.TrimSpace(r.Session) == "" {
		return fmt.Errorf("%w: session is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidRequest)
	}
	if r.Depth < 1 {
		return fmt.Errorf("%w: depth must be >= 1", ErrInvalidRequest)
	}
	if r.Limit < 1 {
		return fmt.Errorf("%w: limit must be >= 1", ErrInvalidRequest)
	}
	return nil
}

func fetchResult(key string, batch domain.TransactionBatch) FetchResult {
	return FetchResult{
		CacheKey:      key,
		NormalTxCount: len(batch.Normal),
		TokenTxCount:  len(batch.Token),
		TotalTxCount:  batch.Total(),
	}
}
