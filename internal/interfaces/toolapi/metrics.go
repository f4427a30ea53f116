package toolapi

import (
	"sync"
	"time"

	"chaingraph/internal/domain"
)

// Metrics tracks tool-server and crawl counters. It doubles as the
// crawler's observer so per-address fetch activity lands here too.
type Metrics struct {
	mu                sync.RWMutex
	startTime         time.Time
	fetchRequests     uint64
	fetchErrors       uint64
	buildRequests     uint64
	buildErrors       uint64
	addressesFetched  uint64
	recordsFetched    uint64
	cacheHits         uint64
	upstreamErrors    uint64
	graphsBuilt       uint64
	nodesBuilt        uint64
	edgesBuilt        uint64
	lastCrawlDuration time.Duration
	lastCrawlRecords  int
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncFetchRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchRequests++
}

func (m *Metrics) IncFetchError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors++
}

func (m *Metrics) IncBuildRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildRequests++
}

func (m *Metrics) IncBuildError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildErrors++
}

func (m *Metrics) ObserveCrawl(duration time.Duration, records int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCrawlDuration = duration
	m.lastCrawlRecords = records
}

func (m *Metrics) ObserveGraph(nodes, edges int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphsBuilt++
	m.nodesBuilt += uint64(nodes)
	m.edgesBuilt += uint64(edges)
}

// CrawlObserver implementation.

func (m *Metrics) OnAddressFetched(address string, depth, normalCount, tokenCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addressesFetched++
	m.recordsFetched += uint64(normalCount + tokenCount)
}

func (m *Metrics) OnCacheHit(address string, kind domain.AssetKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *Metrics) OnFetchError(address string, kind domain.AssetKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamErrors++
}

type Snapshot struct {
	StartTime         time.Time
	FetchRequests     uint64
	FetchErrors       uint64
	BuildRequests     uint64
	BuildErrors       uint64
	AddressesFetched  uint64
	RecordsFetched    uint64
	CacheHits         uint64
	UpstreamErrors    uint64
	GraphsBuilt       uint64
	NodesBuilt        uint64
	EdgesBuilt        uint64
	LastCrawlDuration time.Duration
	LastCrawlRecords  int
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:         m.startTime,
		FetchRequests:     m.fetchRequests,
		FetchErrors:       m.fetchErrors,
		BuildRequests:     m.buildRequests,
		BuildErrors:       m.buildErrors,
		AddressesFetched:  m.addressesFetched,
		RecordsFetched:    m.recordsFetched,
		CacheHits:         m.cacheHits,
		UpstreamErrors:    m.upstreamErrors,
		GraphsBuilt:       m.graphsBuilt,
		NodesBuilt:        m.nodesBuilt,
		EdgesBuilt:        m.edgesBuilt,
		LastCrawlDuration: m.lastCrawlDuration,
		LastCrawlRecords:  m.lastCrawlRecords,
	}
}
