package domain

type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// RawTransactionRecord is one observed transfer in canonical form.
// Addresses are lower-cased on ingestion; Value carries the provider's
// raw integer amount as a decimal string, scaled by Decimals downstream.
type RawTransactionRecord struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	Hash            string    `json:"hash"`
	Value           string    `json:"value"`
	AssetKind       AssetKind `json:"asset_kind"`
	Decimals        int       `json:"decimals"`
	Symbol          string    `json:"symbol,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
	Block           string    `json:"block,omitempty"`
	ContractAddress string    `json:"contract_address,omitempty"`
}

// Valid reports whether the record carries the fields required downstream.
// Records failing this check are dropped, never stored.
func (r RawTransactionRecord) Valid() bool {
	return r.From != "" && r.To != "" && r.Hash != ""
}

// SelfTransfer reports whether both endpoints are the same address.
// Self-transfers carry no graph information and are dropped.
func (r RawTransactionRecord) SelfTransfer() bool {
	return r.From == r.To
}

// TransactionBatch groups the native and token transfers observed for
// one address or for a whole crawl. Batches combine by concatenation.
type TransactionBatch struct {
	Normal []RawTransactionRecord `json:"normal"`
	Token  []RawTransactionRecord `json:"token"`
}

func (b *TransactionBatch) Append(other TransactionBatch) {
	b.Normal = append(b.Normal, other.Normal...)
	b.Token = append(b.Token, other.Token...)
}

func (b TransactionBatch) Total() int {
	return len(b.Normal) + len(b.Token)
}
