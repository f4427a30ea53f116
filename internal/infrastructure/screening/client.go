package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chaingraph/internal/domain"
)

// Client talks to a TRM-style sanctions screening API. Answers are
// advisory; callers default to non-sanctioned on any failure.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

type Config struct {
	URL    string
	APIKey string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("screening url is required")
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

var chainAliases = map[string]string{
	"binance-smart-chain": "bsc",
	"eth":                 "ethereum",
}

func screeningChain(blockchain string) string {
	lowered := strings.ToLower(strings.TrimSpace(blockchain))
	if alias, ok := chainAliases[lowered]; ok {
		return alias
	}
	return lowered
}

type screenRequest struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

type screenResponse struct {
	Address      string `json:"address"`
	IsSanctioned bool   `json:"isSanctioned"`
	Name         string `json:"name"`
}

func (c *Client) Screen(ctx context.Context, address, blockchain string) (domain.ScreeningResult, error) {
	payload, err := json.Marshal([]screenRequest{{
		Address: address,
		Chain:   screeningChain(blockchain),
	}})
	if err != nil {
		return domain.ScreeningResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return domain.ScreeningResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Basic "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ScreeningResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ScreeningResult{}, fmt.Errorf("screening status %d", resp.StatusCode)
	}

	var results []screenResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.ScreeningResult{}, err
	}
	if len(results) == 0 {
		return domain.ScreeningResult{}, errors.New("empty screening response")
	}
	return domain.ScreeningResult{
		IsSanctioned: results[0].IsSanctioned,
		Name:         results[0].Name,
	}, nil
}
