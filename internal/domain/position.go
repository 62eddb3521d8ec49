package domain

import "github.com/shopspring/decimal"

// Position is one open position held by a wallet, as reported by the
// positions data API.
type Position struct {
	TokenID      string
	Size         decimal.Decimal // shares
	CurrentValue decimal.Decimal // USDC mark value
}
