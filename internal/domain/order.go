package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MirrorInstruction is the sized, clamped order derived from a MatchedTrade.
// Amount is USDC notional for BUY and a share quantity (position proportion)
// for SELL.
type MirrorInstruction struct {
	TokenID string
	Side    OrderSide
	Amount  decimal.Decimal
	Delay   time.Duration
}

// MarketOrderArgs are the parameters for a market order sent to the trading
// venue.
type MarketOrderArgs struct {
	TokenID string
	Side    OrderSide
	Amount  decimal.Decimal
}

// OrderResult wraps the venue's response after order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
}

// MirrorStatus tracks the lifecycle of one mirror attempt.
type MirrorStatus string

const (
	MirrorStatusPending MirrorStatus = "pending"
	MirrorStatusFilled  MirrorStatus = "filled"
	MirrorStatusSkipped MirrorStatus = "skipped"
	MirrorStatusFailed  MirrorStatus = "failed"
)

// MirrorRecord is the audit row persisted for every mirror attempt,
// successful or not.
type MirrorRecord struct {
	ID           string
	SourceTxHash string
	SourceMaker  string
	TokenID      string
	Side         OrderSide
	SourceAmount decimal.Decimal // decoded amount before clamping
	MirrorAmount decimal.Decimal // amount actually sent (or that would have been)
	Status       MirrorStatus
	ErrorReason  string
	OrderID      string
	CreatedAt    time.Time
	ExecutedAt   *time.Time
}
