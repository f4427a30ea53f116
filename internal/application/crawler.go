package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chaingraph/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ArtifactStore is the durable (scope, key) -> blob cache shared by
// the crawler and the tool service. Get on a missing key is a normal
// not-found outcome, not a fault.
type ArtifactStore interface {
	Put(ctx context.Context, scope, key string, payload []byte) error
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Has(ctx context.Context, scope, key string) (bool, error)
}

// TransactionSource fetches one page of records per kind from an
// explorer-style upstream. Implementations own their page size.
type TransactionSource interface {
	NormalTransactions(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error)
	TokenTransfers(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error)
}

type CrawlObserver interface {
	OnAddressFetched(address string, depth, normalCount, tokenCount int)
	OnCacheHit(address string, kind domain.AssetKind)
	OnFetchError(address string, kind domain.AssetKind)
}

type CrawlerConfig struct {
	// Workers bounds the per-level fetch fan-out; 1 is sequential.
	Workers int
	// Pause between the native and token fetch of one address.
	Pause time.Duration
}

type CrawlRequest struct {
	PrimaryAddress  string
	Blockchain      string
	Depth           int
	LimitPerAddress int
	// Scope is the artifact namespace for per-address fetch caching;
	// empty disables caching for this crawl.
	Scope string
}

// Crawler discovers an address's transaction neighborhood by
// breadth-first, depth-bounded expansion over observed transfer edges.
type Crawler struct {
	source   TransactionSource
	store    ArtifactStore
	observer CrawlObserver
	cfg      CrawlerConfig
}

func NewCrawler(source TransactionSource, store ArtifactStore, observer CrawlObserver, cfg CrawlerConfig) (*Crawler, error) {
	if source == nil {
		return nil, errors.New("transaction source is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	return &Crawler{source: source, store: store, observer: observer, cfg: cfg}, nil
}

// Crawl expands the primary address level by level. Every address is
// fetched at most once; depth N means N expansion rounds, so depth 1
// fetches only the primary address. Upstream failures degrade to an
// empty batch for the affected address and never abort the crawl.
func (c *Crawler) Crawl(ctx context.Context, req CrawlRequest) (domain.TransactionBatch, error) {
	primary := strings.ToLower(strings.TrimSpace(req.PrimaryAddress))
	if primary == "" {
		return domain.TransactionBatch{}, fmt.Errorf("%w: primary address is required", ErrInvalidRequest)
	}
	if req.Depth < 1 {
		return domain.TransactionBatch{}, fmt.Errorf("%w: depth must be >= 1", ErrInvalidRequest)
	}
	if req.LimitPerAddress < 1 {
		return domain.TransactionBatch{}, fmt.Errorf("%w: limit must be >= 1", ErrInvalidRequest)
	}

	var combined domain.TransactionBatch
	visited := make(map[string]struct{})
	level := []string{primary}

	for depth := 0; depth < req.Depth && len(level) > 0; depth++ {
		pending := make([]string, 0, len(level))
		for _, address := range level {
			if _, ok := visited[address]; ok {
				continue
			}
			visited[address] = struct{}{}
			pending = append(pending, address)
		}
		if len(pending) == 0 {
			break
		}

		slog.Info("expanding crawl level",
			"depth", depth+1,
			"max_depth", req.Depth,
			"addresses", len(pending),
			"visited", len(visited),
		)

		results := make([]domain.TransactionBatch, len(pending))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(c.cfg.Workers)
		for i, address := range pending {
			group.Go(func() error {
				results[i] = c.fetchAddress(groupCtx, req, address, depth)
				return nil
			})
		}
		// Fetch failures degrade inside fetchAddress, so Wait only
		// surfaces context cancellation.
		_ = group.Wait()
		if err := ctx.Err(); err != nil {
			return combined, err
		}

		next := make([]string, 0)
		discovered := make(map[string]struct{})
		for i := range results {
			combined.Append(results[i])
			if depth >= req.Depth-1 {
				continue
			}
			for _, address := range connectedAddresses(results[i], pending[i]) {
				if _, ok := visited[address]; ok {
					continue
				}
				if _, ok := discovered[address]; ok {
					continue
				}
				discovered[address] = struct{}{}
				next = append(next, address)
			}
		}
		if depth < req.Depth-1 {
			slog.Info("discovered addresses", "depth", depth+2, "count", len(next))
		}
		level = next
	}

	return combined, nil
}

func (c *Crawler) fetchAddress(ctx context.Context, req CrawlRequest, address string, depth int) domain.TransactionBatch {
	normal := c.fetchKind(ctx, req, address, domain.AssetNative)
	if c.cfg.Pause > 0 {
		select {
		case <-ctx.Done():
			return domain.TransactionBatch{Normal: normal}
		case <-time.After(c.cfg.Pause):
		}
	}
	token := c.fetchKind(ctx, req, address, domain.AssetToken)
	if c.observer != nil {
		c.observer.OnAddressFetched(address, depth, len(normal), len(token))
	}
	return domain.TransactionBatch{Normal: normal, Token: token}
}

func (c *Crawler) fetchKind(ctx context.Context, req CrawlRequest, address string, kind domain.AssetKind) []domain.RawTransactionRecord {
	key := AddressKey(address, kind)
	caching := c.store != nil && req.Scope != ""

	if caching {
		if payload, ok, err := c.store.Get(ctx, req.Scope, key); err != nil {
			slog.Warn("artifact cache read failed", "scope", req.Scope, "key", key, "err", err)
		} else if ok {
			var records []domain.RawTransactionRecord
			if err := json.Unmarshal(payload, &records); err != nil {
				slog.Warn("artifact cache entry unreadable", "scope", req.Scope, "key", key, "err", err)
			} else {
				if c.observer != nil {
					c.observer.OnCacheHit(address, kind)
				}
				return limitRecords(records, req.LimitPerAddress)
			}
		}
	}

	var records []domain.RawTransactionRecord
	var err error
	switch kind {
	case domain.AssetToken:
		records, err = c.source.TokenTransfers(ctx, req.Blockchain, address)
	default:
		records, err = c.source.NormalTransactions(ctx, req.Blockchain, address)
	}
	if err != nil {
		if c.observer != nil {
			c.observer.OnFetchError(address, kind)
		}
		slog.Warn("transaction fetch failed", "address", address, "kind", kind, "err", err)
		return nil
	}

	if caching {
		if payload, err := json.Marshal(records); err != nil {
			slog.Warn("artifact encode failed", "key", key, "err", err)
		} else if err := c.store.Put(ctx, req.Scope, key, payload); err != nil {
			slog.Warn("artifact cache write failed", "scope", req.Scope, "key", key, "err", err)
		}
	}
	return limitRecords(records, req.LimitPerAddress)
}

// connectedAddresses lists counterpart addresses in record order,
// skipping the expanded address itself. Callers dedup against the
// visited set.
func connectedAddresses(batch domain.TransactionBatch, expanded string) []string {
	var out []string
	appendEndpoints := func(records []domain.RawTransactionRecord) {
		for _, record := range records {
			if from := strings.ToLower(record.From); from != "" && from != expanded {
				out = append(out, from)
			}
			if to := strings.ToLower(record.To); to != "" && to != expanded {
				out = append(out, to)
			}
		}
	}
	appendEndpoints(batch.Normal)
	appendEndpoints(batch.Token)
	return out
}

func limitRecords(records []domain.RawTransactionRecord, limit int) []domain.RawTransactionRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
