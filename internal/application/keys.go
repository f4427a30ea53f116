package application

import (
	"fmt"
	"strings"

	"chaingraph/internal/domain"
)

// Cache entries live under two namespaces per investigation session:
// raw per-address fetches and combined batches under the tx scope,
// finalized networks under the net scope. The derivation below is the
// stable contract; changing it invalidates every existing cache.

func BatchScope(session string) string {
	return "tx/" + session
}

func NetworkScope(session string) string {
	return "net/" + session
}

// BatchKey derives the cache key for a combined crawl batch from the
// crawl parameters.
func BatchKey(address, blockchain string, depth, limit int) string {
	return fmt.Sprintf("%s_%s_d%d_l%d", shortAddress(address), blockchain, depth, limit)
}

// NetworkKey derives the cache key for a finalized network.
func NetworkKey(address, blockchain string) string {
	return fmt.Sprintf("network_%s_%s", shortAddress(address), blockchain)
}

// AddressKey derives the per-address raw fetch key within the batch
// scope. The key deliberately excludes the fetch limit: the cached
// entry holds the provider's full page and callers slice it down.
func AddressKey(address string, kind domain.AssetKind) string {
	trimmed := strings.TrimPrefix(strings.ToLower(address), "0x")
	if kind == domain.AssetToken {
		return trimmed + "_token"
	}
	return trimmed + "_normal"
}

func shortAddress(address string) string {
	lowered := strings.ToLower(address)
	if len(lowered) > 10 {
		return lowered[:10]
	}
	return lowered
}
