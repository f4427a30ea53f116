package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chaingraph/internal/domain"
)

// ScreeningPort is the external sanctions lookup. Results are
// advisory: a failed lookup leaves the node non-sanctioned.
type ScreeningPort interface {
	Screen(ctx context.Context, address, blockchain string) (domain.ScreeningResult, error)
}

type edgeCandidate struct {
	source string
	target string
	volume float64
	symbol string
}

type edgePair struct {
	source string
	target string
}

// GraphBuilder accumulates normalized transfer records into per-address
// node stats and edge candidates, then folds them into a canonical
// network on Finalize. AddBatch is safe to call repeatedly; sums and
// set unions make the final aggregate independent of batch order.
// A builder owns all of its state, so instances over different primary
// addresses are fully independent without locking.
type GraphBuilder struct {
	primary    string
	blockchain string

	nodeOrder  []string
	nodeSeen   map[string]struct{}
	txCounts   map[string]int
	volumes    map[string]float64
	candidates []edgeCandidate
}

func NewGraphBuilder(primaryAddress, blockchain string) (*GraphBuilder, error) {
	primary := strings.ToLower(strings.TrimSpace(primaryAddress))
	if primary == "" {
		return nil, errors.New("primary address is required")
	}
	if strings.TrimSpace(blockchain) == "" {
		return nil, errors.New("blockchain is required")
	}
	return &GraphBuilder{
		primary:    primary,
		blockchain: blockchain,
		nodeSeen:   make(map[string]struct{}),
		txCounts:   make(map[string]int),
		volumes:    make(map[string]float64),
	}, nil
}

func (b *GraphBuilder) AddBatch(batch domain.TransactionBatch) {
	for _, record := range batch.Normal {
		b.addRecord(record)
	}
	for _, record := range batch.Token {
		b.addRecord(record)
	}
}

func (b *GraphBuilder) addRecord(record domain.RawTransactionRecord) {
	record.From = strings.ToLower(record.From)
	record.To = strings.ToLower(record.To)
	if !record.Valid() || record.SelfTransfer() {
		return
	}

	volume, err := NormalizedVolume(record)
	if err != nil {
		slog.Warn("dropping malformed record", "hash", record.Hash, "err", err)
		return
	}
	symbol := RecordSymbol(record, b.blockchain)

	b.volumes[record.From] += volume
	b.volumes[record.To] += volume
	b.txCounts[record.From]++
	b.txCounts[record.To]++
	b.touch(record.From)
	b.touch(record.To)

	b.candidates = append(b.candidates, edgeCandidate{
		source: record.From,
		target: record.To,
		volume: volume,
		symbol: symbol,
	})
}

func (b *GraphBuilder) touch(address string) {
	if _, ok := b.nodeSeen[address]; ok {
		return
	}
	b.nodeSeen[address] = struct{}{}
	b.nodeOrder = append(b.nodeOrder, address)
}

// Finalize aggregates edges, enriches nodes, and optionally screens
// the supplied allow-list of addresses. Addresses outside the list are
// never screened and default to non-sanctioned; that is a deliberate
// cost control, not a shortcut. Screening failures log and leave the
// node non-sanctioned.
func (b *GraphBuilder) Finalize(ctx context.Context, screener ScreeningPort, addressesToScreen []string) domain.NetworkGraph {
	toScreen := make(map[string]struct{}, len(addressesToScreen))
	for _, address := range addressesToScreen {
		toScreen[strings.ToLower(address)] = struct{}{}
	}

	edges := b.aggregateEdges()

	nodes := make([]domain.GraphNode, 0, len(b.nodeOrder))
	for _, address := range b.nodeOrder {
		node := domain.GraphNode{
			Address:          address,
			Role:             domain.RoleConnected,
			Entity:           displayLabel(address, false),
			TransactionCount: b.txCounts[address],
			TotalVolume:      b.volumes[address],
		}
		if address == b.primary {
			node.Role = domain.RolePrimary
			node.Entity = displayLabel(address, true)
		}

		if screener != nil {
			if _, ok := toScreen[address]; ok {
				result, err := screener.Screen(ctx, address, b.blockchain)
				if err != nil {
					slog.Warn("sanctions screening failed", "address", address, "err", err)
				} else {
					node.IsSanctioned = result.IsSanctioned
					if result.Name != "" {
						node.Entity = result.Name
					}
				}
			}
		}

		// Heuristic contract detection: busy or high-volume addresses
		// are flagged without a bytecode check, so this is approximate.
		node.IsContract = node.TransactionCount > 5 || node.TotalVolume > 100

		nodes = append(nodes, node)
	}

	return domain.NetworkGraph{
		Nodes: nodes,
		Edges: edges,
		Metadata: domain.NetworkMetadata{
			PrimaryAddress:    b.primary,
			Blockchain:        b.blockchain,
			TotalNodes:        len(nodes),
			TotalEdges:        len(edges),
			TotalTransactions: len(b.candidates),
		},
	}
}

// aggregateEdges collapses candidates sharing an ordered (source,
// target) pair. The dominant symbol is the most frequent one, ties
// broken by first encounter within the group so the result does not
// depend on map iteration order.
func (b *GraphBuilder) aggregateEdges() []domain.GraphEdge {
	type group struct {
		volume       float64
		count        int
		symbolCounts map[string]int
		symbolOrder  []string
	}

	groups := make(map[edgePair]*group)
	order := make([]edgePair, 0)
	for _, candidate := range b.candidates {
		pair := edgePair{source: candidate.source, target: candidate.target}
		g, ok := groups[pair]
		if !ok {
			g = &group{symbolCounts: make(map[string]int)}
			groups[pair] = g
			order = append(order, pair)
		}
		g.volume += candidate.volume
		g.count++
		if _, seen := g.symbolCounts[candidate.symbol]; !seen {
			g.symbolOrder = append(g.symbolOrder, candidate.symbol)
		}
		g.symbolCounts[candidate.symbol]++
	}

	edges := make([]domain.GraphEdge, 0, len(order))
	for _, pair := range order {
		g := groups[pair]
		dominant := ""
		best := 0
		for _, symbol := range g.symbolOrder {
			if g.symbolCounts[symbol] > best {
				best = g.symbolCounts[symbol]
				dominant = symbol
			}
		}
		direction := domain.DirectionInbound
		if pair.source == b.primary {
			direction = domain.DirectionOutbound
		}
		edges = append(edges, domain.GraphEdge{
			Source:           pair.source,
			Target:           pair.target,
			Volume:           g.volume,
			TransactionCount: g.count,
			Token:            dominant,
			Direction:        direction,
		})
	}
	return edges
}

func displayLabel(address string, primary bool) string {
	if primary {
		return "Primary Address"
	}
	short := address
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Address %s...", short)
}
