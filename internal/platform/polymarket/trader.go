package polymarket

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// Trader ties the CLOB and data clients into the single order-entry surface
// the mirror executor consumes.
type Trader struct {
	clob   *ClobClient
	data   *DataClient
	funder string
}

// NewTrader creates a Trader. funder is the address positions are held
// under.
func NewTrader(clob *ClobClient, data *DataClient, funder string) *Trader {
	return &Trader{clob: clob, data: data, funder: funder}
}

// CollateralBalance returns the available USDC balance.
func (t *Trader) CollateralBalance(ctx context.Context) (decimal.Decimal, error) {
	return t.clob.GetBalanceAllowance(ctx)
}

// PositionSize returns the held share count for a token.
func (t *Trader) PositionSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return t.data.GetPositionSize(ctx, t.funder, tokenID)
}

// PlaceMarketOrder submits a marketable FOK order.
func (t *Trader) PlaceMarketOrder(ctx context.Context, args domain.MarketOrderArgs) (domain.OrderResult, error) {
	return t.clob.CreateMarketOrder(ctx, args)
}
