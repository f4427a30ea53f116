package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chaingraph/internal/domain"
)

const defaultPageSize = 100

// Client talks to a Moralis-style explorer API and maps its wire
// records into canonical transaction records.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("explorer base url is required")
	}
	if cfg.PageSize <= 0 || cfg.PageSize > defaultPageSize {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

var chainIDs = map[string]string{
	"ethereum": "0x1",
	"eth":      "0x1",
	"bsc":      "0x38",
}

func chainID(blockchain string) string {
	if id, ok := chainIDs[strings.ToLower(strings.TrimSpace(blockchain))]; ok {
		return id
	}
	return "0x1"
}

type nativeTx struct {
	Hash           string      `json:"hash"`
	FromAddress    string      `json:"from_address"`
	ToAddress      string      `json:"to_address"`
	Value          string      `json:"value"`
	BlockNumber    json.Number `json:"block_number"`
	BlockTimestamp string      `json:"block_timestamp"`
}

type tokenTransfer struct {
	TransactionHash string      `json:"transaction_hash"`
	FromAddress     string      `json:"from_address"`
	ToAddress       string      `json:"to_address"`
	Value           string      `json:"value"`
	TokenSymbol     string      `json:"token_symbol"`
	TokenDecimals   json.Number `json:"token_decimals"`
	Address         string      `json:"address"`
	BlockNumber     json.Number `json:"block_number"`
	BlockTimestamp  string      `json:"block_timestamp"`
}

func (c *Client) NormalTransactions(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error) {
	var payload struct {
		Result []nativeTx `json:"result"`
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(address))
	if err := c.get(ctx, endpoint, blockchain, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.RawTransactionRecord, 0, len(payload.Result))
	for _, tx := range payload.Result {
		records = append(records, domain.RawTransactionRecord{
			From:      strings.ToLower(tx.FromAddress),
			To:        strings.ToLower(tx.ToAddress),
			Hash:      tx.Hash,
			Value:     valueOrZero(tx.Value),
			AssetKind: domain.AssetNative,
			Decimals:  18,
			Timestamp: tx.BlockTimestamp,
			Block:     tx.BlockNumber.String(),
		})
	}
	return records, nil
}

func (c *Client) TokenTransfers(ctx context.Context, blockchain, address string) ([]domain.RawTransactionRecord, error) {
	var payload struct {
		Result []tokenTransfer `json:"result"`
	}
	endpoint := fmt.Sprintf("%s/%s/erc20/transfers", c.baseURL, url.PathEscape(address))
	if err := c.get(ctx, endpoint, blockchain, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.RawTransactionRecord, 0, len(payload.Result))
	for _, transfer := range payload.Result {
		symbol := transfer.TokenSymbol
		if strings.TrimSpace(symbol) == "" {
			symbol = "UNK"
		}
		records = append(records, domain.RawTransactionRecord{
			From:            strings.ToLower(transfer.FromAddress),
			To:              strings.ToLower(transfer.ToAddress),
			Hash:            transfer.TransactionHash,
			Value:           valueOrZero(transfer.Value),
			AssetKind:       domain.AssetToken,
			Decimals:        parseDecimals(transfer.TokenDecimals),
			Symbol:          symbol,
			Timestamp:       transfer.BlockTimestamp,
			Block:           transfer.BlockNumber.String(),
			ContractAddress: strings.ToLower(transfer.Address),
		})
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, endpoint, blockchain string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	query := req.URL.Query()
	query.Set("chain", chainID(blockchain))
	query.Set("limit", strconv.Itoa(c.pageSize))
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("explorer status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// parseDecimals keeps an explicit zero (valid for zero-decimal
// tokens); absent or unparseable decimals default to 18.
func parseDecimals(raw json.Number) int {
	value, err := strconv.Atoi(raw.String())
	if err != nil || value < 0 {
		return 18
	}
	return value
}

func valueOrZero(value string) string {
	if strings.TrimSpace(value) == "" {
		return "0"
	}
	return value
}
