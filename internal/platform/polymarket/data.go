package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// DataClient reads positions from the Polymarket data API. Unauthenticated.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a data-api client; baseURL is typically
// "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetPositions returns all open positions for a user address.
func (c *DataClient) GetPositions(ctx context.Context, user string) ([]domain.Position, error) {
	endpoint := c.baseURL + "/positions?user=" + url.QueryEscape(user)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: create positions request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get positions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: read positions response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/data: get positions: %w", err)
	}

	var rows []apiPosition
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, domain.Position{
			TokenID:      row.Asset,
			Size:         decimal.NewFromFloat(row.Size),
			CurrentValue: decimal.NewFromFloat(row.CurrentValue),
		})
	}
	return positions, nil
}

// GetPositionSize returns the held size for one token, zero when the user
// has no position in it.
func (c *DataClient) GetPositionSize(ctx context.Context, user, tokenID string) (decimal.Decimal, error) {
	positions, err := c.GetPositions(ctx, user)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range positions {
		if p.TokenID == tokenID {
			return p.Size, nil
		}
	}
	return decimal.Zero, nil
}
