package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenTransfer is one raw ERC-20 transfer row as returned by the block
// explorer's tokentx listing. String fields are kept as delivered; numeric
// interpretation happens when the row is turned into a ledger entry.
type TokenTransfer struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	TimeStamp   string `json:"timeStamp"`
	BlockNumber string `json:"blockNumber"`
	GasPrice    string `json:"gasPrice"`
	GasUsed     string `json:"gasUsed"`
	TokenSymbol string `json:"tokenSymbol"`
}

// WalletLedgerEntry is one historical transfer decorated with the decoded
// order fields and derived economics. Rows whose originating call could not
// be (or was not) decoded keep an empty FunctionName.
type WalletLedgerEntry struct {
	Transfer       TokenTransfer
	Time           time.Time
	Value          decimal.Decimal // USDC, 6 decimals applied
	GasCost        decimal.Decimal // native token (MATIC)
	Relay          bool            // routed through the meta-transaction relay
	InteractedWith string          // contract the originating tx called
	Input          string          // originating tx calldata (empty for relay rows)

	// Decoded order fields; zero values when FunctionName is empty.
	FunctionName string
	Maker        string
	Signer       string
	TokenID      string
	MakerAmount  string
	Side         OrderSide

	// Merged position/P&L columns.
	CurrentPosition decimal.Decimal
	CurrentValue    decimal.Decimal
	RealizedPnL     decimal.Decimal
}

// TokenStats is the per-instrument aggregate computed by the backtest.
type TokenStats struct {
	TokenID     string
	RealizedPnL decimal.Decimal
	TotalVolume decimal.Decimal
}

// BacktestReport is the output of aggregating a wallet's transfer history.
type BacktestReport struct {
	Address          string
	Entries          []WalletLedgerEntry // sorted by time descending
	PerToken         []TokenStats
	WinRate          decimal.Decimal
	TotalRealizedPnL decimal.Decimal
	TotalOpenValue   decimal.Decimal
	TotalPnL         decimal.Decimal
	GeneratedAt      time.Time
}
