// Package watch turns the raw pending-transaction feed into attributed
// trade events for a single watched wallet.
package watch

import (
	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// Attributor decides whether a decoded order belongs to the watched wallet.
// Polymarket orders are usually submitted by an operator, so the wallet
// appears as the order's maker rather than the transaction sender.
type Attributor struct {
	wallet string
}

// NewAttributor creates an attributor for the given wallet address. The
// address is normalized once so every later comparison is a plain string
// equality.
func NewAttributor(wallet string) *Attributor {
	return &Attributor{wallet: domain.NormalizeAddress(wallet)}
}

// Wallet returns the normalized watched address.
func (a *Attributor) Wallet() string {
	return a.wallet
}

// Matches reports whether the event's maker is the watched wallet. The
// signer is deliberately ignored: operators sign orders for many makers,
// and a signer match alone does not make the trade the wallet's.
func (a *Attributor) Matches(ev domain.DecodedOrderEvent) bool {
	if a.wallet == "" {
		return false
	}
	return domain.NormalizeAddress(ev.Maker) == a.wallet
}
