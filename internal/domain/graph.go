package domain

type NodeRole string

const (
	RolePrimary   NodeRole = "primary"
	RoleConnected NodeRole = "connected"
)

// GraphNode is one address in a finalized network.
//
// IsContract comes from an interaction-count/volume heuristic, not a
// bytecode lookup, so it is approximate by construction.
type GraphNode struct {
	Address          string   `json:"address"`
	Role             NodeRole `json:"role"`
	Entity           string   `json:"entity"`
	TransactionCount int      `json:"transaction_count"`
	TotalVolume      float64  `json:"total_volume"`
	IsSanctioned     bool     `json:"is_sanctioned"`
	IsContract       bool     `json:"is_contract"`
}

type EdgeDirection string

const (
	DirectionOutbound EdgeDirection = "outbound"
	DirectionInbound  EdgeDirection = "inbound"
)

// GraphEdge aggregates every raw transfer between one ordered address
// pair. Direction is relative to the primary address of the network.
type GraphEdge struct {
	Source           string        `json:"source"`
	Target           string        `json:"target"`
	Volume           float64       `json:"volume"`
	TransactionCount int           `json:"transaction_count"`
	Token            string        `json:"token"`
	Direction        EdgeDirection `json:"direction"`
}

type NetworkMetadata struct {
	PrimaryAddress string `json:"primary_address"`
	Blockchain     string `json:"blockchain"`
	TotalNodes     int    `json:"total_nodes"`
	TotalEdges     int    `json:"total_edges"`
	// TotalTransactions counts pre-aggregation records, not edges.
	TotalTransactions int `json:"total_transactions"`
}

type NetworkGraph struct {
	Nodes    []GraphNode     `json:"nodes"`
	Edges    []GraphEdge     `json:"edges"`
	Metadata NetworkMetadata `json:"metadata"`
}
