package domain

import (
	"math/big"
	"strings"
	"time"
)

// OrderSide indicates the direction of the watched wallet's order. On-chain
// the CTF exchange encodes it as uint8 (0 = buy, 1 = sell).
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// SideFromUint8 maps the on-chain side byte to an OrderSide. The second
// return value is false for any value other than 0 or 1.
func SideFromUint8(v uint8) (OrderSide, bool) {
	switch v {
	case 0:
		return SideBuy, true
	case 1:
		return SideSell, true
	default:
		return "", false
	}
}

// PendingTransaction is a single entry from the pending-transaction feed,
// reduced to the fields the detection pipeline needs. It is consumed once by
// the filter/decode stage and then discarded.
type PendingTransaction struct {
	Hash  string
	From  string
	To    string
	Input string
}

// DecodedOrderEvent is the economic content of one matchOrders call,
// extracted from the taker order embedded in the calldata. Immutable once
// produced.
type DecodedOrderEvent struct {
	Maker         string
	Signer        string
	TokenID       string
	MakerAmount   *big.Int // raw units, 6 decimals (USDC for BUY, shares for SELL)
	Side          OrderSide
	SignatureType int
}

// MatchedTrade is a DecodedOrderEvent attributed to the watched wallet,
// tagged with its source transaction so mirrors can be deduplicated.
type MatchedTrade struct {
	TxHash     string
	Event      DecodedOrderEvent
	DetectedAt time.Time
}

// NormalizeAddress lowercases an address and guarantees a 0x prefix, so that
// addresses from calldata, config, and REST responses compare equal.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return a
	}
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}
