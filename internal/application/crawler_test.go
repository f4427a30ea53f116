package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"chaingraph/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, scope, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[scope+"|"+key] = append([]byte(nil), payload...)
	s.puts++
	return nil
}

func (s *memStore) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.entries[scope+"|"+key]
	return payload, ok, nil
}

func (s *memStore) Has(ctx context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[scope+"|"+key]
	return ok, nil
}

type mockSource struct {
	mu     sync.Mutex
	normal map[string][]domain.RawTransactionRecord
	token  map[string][]domain.RawTransactionRecord
	fail   map[string]bool
	calls  int
}

func newMockSource() *mockSource {
	return &mockSource{
		normal: make(map[string][]domain.RawTransactionRecord),
		token:  make(map[string][]domain.RawTransactionRecord),
		fail:   make(map[string]bool),
	}
}

func (m *mockSource) NormalTransactions(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[address] {
		return nil, errors.New("upstream unavailable")
	}
	return m.normal[address], nil
}

func (m *mockSource) TokenTransfers(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[address] {
		return nil, errors.New("upstream unavailable")
	}
	return m.token[address], nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSource) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
}

func nativeTx(from, to, hash string) domain.RawTransactionRecord {
	return domain.RawTransactionRecord{
		From:      from,
		To:        to,
		Hash:      hash,
		Value:     "1000000000000000000",
		AssetKind: domain.AssetNative,
		Decimals:  18,
	}
}

func newTestCrawler(t *testing.T, source TransactionSource, store ArtifactStore) *Crawler {
	t.Helper()
	crawler, err := NewCrawler(source, store, nil, CrawlerConfig{Workers: 2})
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	return crawler
}

func TestCrawlDepthOneFetchesOnlyPrimary(t *testing.T) {
	source := newMockSource()
	source.normal["0xaaa"] = []domain.RawTransactionRecord{nativeTx("0xaaa", "0xbbb", "0x1")}
	source.normal["0xbbb"] = []domain.RawTransactionRecord{nativeTx("0xbbb", "0xccc", "0x2")}

	crawler := newTestCrawler(t, source, newMemStore())
	batch, err := crawler.Crawl(context.Background(), CrawlRequest{
		PrimaryAddress:  "0xAAA",
		Blockchain:      "ethereum",
		Depth:           1,
		LimitPerAddress: 10,
		Scope:           "tx/s1",
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(batch.Normal) != 1 || batch.Normal[0].Hash != "0x1" {
		t.Fatalf("expected only the primary's transaction, got %+v", batch.Normal)
	}
	// One normal + one token fetch for the primary, nothing else.
	if got := source.callCount(); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestCrawlVisitedOnceAcrossCycle(t *testing.T) {
	source := newMockSource()
	source.normal["0xaaa"] = []domain.RawTransactionRecord{nativeTx("0xaaa", "0xbbb", "0x1")}
	source.normal["0xbbb"] = []domain.RawTransactionRecord{nativeTx("0xbbb", "0xaaa", "0x2")}

	crawler := newTestCrawler(t, source, newMemStore())
	batch, err := crawler.Crawl(context.Background(), CrawlRequest{
		PrimaryAddress:  "0xaaa",
		Blockchain:      "ethereum",
		Depth:           3,
		LimitPerAddress: 10,
		Scope:           "tx/s1",
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(batch.Normal) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch.Normal))
	}
	// Two addresses, two kinds each. The cycle must not refetch.
	if got := source.callCount(); got != 4 {
		t.Fatalf("expected 4 upstream calls, got %d", got)
	}
}

func TestCrawlWarmCacheSkipsUpstream(t *testing.T) {
	source := newMockSource()
	source.normal["0xaaa"] = []domain.RawTransactionRecord{nativeTx("0xaaa", "0xbbb", "0x1")}
	source.token["0xbbb"] = []domain.RawTransactionRecord{
		{From: "0xbbb", To: "0xaaa", Hash: "0x2", Value: "500", AssetKind: domain.AssetToken, Decimals: 2, Symbol: "USDC"},
	}
	store := newMemStore()
	crawler := newTestCrawler(t, source, store)

	req := CrawlRequest{
		PrimaryAddress:  "0xaaa",
		Blockchain:      "ethereum",
		Depth:           2,
		LimitPerAddress: 10,
		Scope:           "tx/s1",
	}
	first, err := crawler.Crawl(context.Background(), req)
	if err != nil {
		t.Fatalf("first Crawl: %v", err)
	}
	source.resetCalls()

	second, err := crawler.Crawl(context.Background(), req)
	if err != nil {
		t.Fatalf("second Crawl: %v", err)
	}
	if got := source.callCount(); got != 0 {
		t.Fatalf("expected warm crawl to make no upstream calls, got %d", got)
	}

	firstPayload, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first batch: %v", err)
	}
	secondPayload, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second batch: %v", err)
	}
	if !bytes.Equal(firstPayload, secondPayload) {
		t.Fatalf("warm crawl changed the batch:\n%s\nvs\n%s", firstPayload, secondPayload)
	}
}

func TestCrawlFetchFailureDegrades(t *testing.T) {
	source := newMockSource()
	source.normal["0xaaa"] = []domain.RawTransactionRecord{
		nativeTx("0xaaa", "0xbbb", "0x1"),
		nativeTx("0xaaa", "0xccc", "0x2"),
	}
	source.normal["0xccc"] = []domain.RawTransactionRecord{nativeTx("0xccc", "0xddd", "0x3")}
	source.fail["0xbbb"] = true

	crawler := newTestCrawler(t, source, newMemStore())
	batch, err := crawler.Crawl(context.Background(), CrawlRequest{
		PrimaryAddress:  "0xaaa",
		Blockchain:      "ethereum",
		Depth:           2,
		LimitPerAddress: 10,
		Scope:           "tx/s1",
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(batch.Normal) != 3 {
		t.Fatalf("expected records from healthy addresses, got %d", len(batch.Normal))
	}
}

func TestCrawlCachesFullPageAndSlicesToLimit(t *testing.T) {
	source := newMockSource()
	source.normal["0xaaa"] = []domain.RawTransactionRecord{
		nativeTx("0xaaa", "0xb01", "0x1"),
		nativeTx("0xaaa", "0xb02", "0x2"),
		nativeTx("0xaaa", "0xb03", "0x3"),
	}
	store := newMemStore()
	crawler := newTestCrawler(t, source, store)

	small, err := crawler.Crawl(context.Background(), CrawlRequest{
		PrimaryAddress:  "0xaaa",
		Blockchain:      "ethereum",
		Depth:           1,
		LimitPerAddress: 2,
		Scope:           "tx/s1",
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(small.Normal) != 2 {
		t.Fatalf("expected limit to slice to 2 records, got %d", len(small.Normal))
	}

	// The cached entry holds the full page, so a wider limit is served
	// from cache without an upstream call.
	source.resetCalls()
	wide, err := crawler.Crawl(context.Background(), CrawlRequest{
		PrimaryAddress:  "0xaaa",
		Blockchain:      "ethereum",
		Depth:           1,
		LimitPerAddress: 3,
		Scope:           "tx/s1",
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if got := source.callCount(); got != 0 {
		t.Fatalf("expected cached serve, got %d upstream calls", got)
	}
	if len(wide.Normal) != 3 {
		t.Fatalf("expected 3 records from cached page, got %d", len(wide.Normal))
	}
}

func TestCrawlRejectsInvalidRequest(t *testing.T) {
	crawler := newTestCrawler(t, newMockSource(), newMemStore())

	cases := []CrawlRequest{
		{PrimaryAddress: "", Depth: 2, LimitPerAddress: 10},
		{PrimaryAddress: "0xaaa", Depth: 0, LimitPerAddress: 10},
		{PrimaryAddress: "0xaaa", Depth: 2, LimitPerAddress: 0},
	}
	for _, req := range cases {
		if _, err := crawler.Crawl(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("request %+v: expected ErrInvalidRequest, got %v", req, err)
		}
	}
}
