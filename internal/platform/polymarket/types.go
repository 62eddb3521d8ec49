// Package polymarket contains the REST clients for the Polymarket CLOB
// (order entry, balances, books) and data API (positions).
package polymarket

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// BookLevel is one price level of the orderbook.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Book is the CLOB orderbook snapshot for one token.
type Book struct {
	Market  string      `json:"market"`
	AssetID string      `json:"asset_id"`
	Bids    []BookLevel `json:"bids"`
	Asks    []BookLevel `json:"asks"`
}

// BestAsk returns the lowest ask, false when the side is empty.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	return bestLevel(b.Asks, false)
}

// BestBid returns the highest bid, false when the side is empty.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	return bestLevel(b.Bids, true)
}

func bestLevel(levels []BookLevel, wantHighest bool) (decimal.Decimal, bool) {
	best := decimal.Zero
	found := false
	for _, lv := range levels {
		p, err := decimal.NewFromString(lv.Price)
		if err != nil || !p.IsPositive() {
			continue
		}
		if !found || (wantHighest && p.GreaterThan(best)) || (!wantHighest && p.LessThan(best)) {
			best = p
			found = true
		}
	}
	return best, found
}

// apiOrderResult is the CLOB response to order submission.
type apiOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

func (r *apiOrderResult) toDomain() domain.OrderResult {
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Status:  r.Status,
		Message: r.ErrorMsg,
	}
}

// apiPosition is one row of the data-api positions response.
type apiPosition struct {
	Asset        string  `json:"asset"`
	Size         float64 `json:"size"`
	CurrentValue float64 `json:"currentValue"`
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
