package application

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"chaingraph/internal/domain"
)

const defaultDecimals = 18

// NativeSymbol returns the gas-token symbol for a blockchain.
func NativeSymbol(blockchain string) string {
	switch strings.ToLower(strings.TrimSpace(blockchain)) {
	case "bsc", "binance-smart-chain":
		return "BNB"
	default:
		return "ETH"
	}
}

// NormalizedVolume converts a record's raw integer value into asset
// units: native transfers scale by 10^18, token transfers by the
// record's reported decimals. Zero decimals is a valid token
// configuration and divides by 1; only a negative count falls back to
// 18 (the explorer encodes absent or unparseable decimals as 18). A
// non-numeric value is an error so callers can drop the one bad
// record instead of corrupting aggregate sums.
func NormalizedVolume(record domain.RawTransactionRecord) (float64, error) {
	raw, err := strconv.ParseFloat(strings.TrimSpace(record.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q for tx %s: %w", record.Value, record.Hash, err)
	}
	decimals := defaultDecimals
	if record.AssetKind == domain.AssetToken && record.Decimals >= 0 {
		decimals = record.Decimals
	}
	return raw / math.Pow(10, float64(decimals)), nil
}

// RecordSymbol resolves the display symbol for a record: the chain's
// gas token for native transfers, the reported token symbol otherwise.
func RecordSymbol(record domain.RawTransactionRecord, blockchain string) string {
	if record.AssetKind == domain.AssetNative {
		return NativeSymbol(blockchain)
	}
	if strings.TrimSpace(record.Symbol) == "" {
		return "TOKEN"
	}
	return record.Symbol
}
