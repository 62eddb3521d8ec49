package abi

import (
	"encoding/hex"
	"fmt"
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// orderComponents describes the CTF-exchange Order struct. The same tuple is
// used by the CTFExchange, NegRiskCTFExchange, and both fee modules, which is
// why a single decoder covers every contract the watched wallet trades
// through.
var orderComponents = []ethabi.ArgumentMarshaling{
	{Name: "salt", Type: "uint256"},
	{Name: "maker", Type: "address"},
	{Name: "signer", Type: "address"},
	{Name: "taker", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "makerAmount", Type: "uint256"},
	{Name: "takerAmount", Type: "uint256"},
	{Name: "expiration", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "feeRateBps", Type: "uint256"},
	{Name: "side", Type: "uint8"},
	{Name: "signatureType", Type: "uint8"},
	{Name: "signature", Type: "bytes"},
}

// matchOrders(Order takerOrder, Order[] makerOrders,
//
//	uint256 takerFillAmount, uint256[] makerFillAmounts)
var matchOrdersArgs = ethabi.Arguments{
	{Name: "takerOrder", Type: mustNewType("tuple", orderComponents)},
	{Name: "makerOrders", Type: mustNewType("tuple[]", orderComponents)},
	{Name: "takerFillAmount", Type: mustNewType("uint256", nil)},
	{Name: "makerFillAmounts", Type: mustNewType("uint256[]", nil)},
}

func mustNewType(t string, components []ethabi.ArgumentMarshaling) ethabi.Type {
	typ, err := ethabi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("abi: build type %s: %v", t, err))
	}
	return typ
}

// exchangeOrder mirrors orderComponents for ConvertType.
type exchangeOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenId       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
	Signature     []byte
}

// Decoder turns matchOrders calldata into DecodedOrderEvents. It holds only
// the configured selector, so a single instance is safe for concurrent use
// from any number of workers.
type Decoder struct {
	selector string
}

// NewDecoder creates a Decoder for the given 4-byte selector (hex, with or
// without 0x prefix).
func NewDecoder(selector string) (*Decoder, error) {
	sel := NormalizeSelector(selector)
	if len(sel) != selectorHexLen {
		return nil, fmt.Errorf("abi: selector must be 4 bytes of hex, got %q", selector)
	}
	if _, err := hex.DecodeString(sel); err != nil {
		return nil, fmt.Errorf("abi: selector is not valid hex: %w", err)
	}
	return &Decoder{selector: sel}, nil
}

// Selector returns the normalized selector the decoder matches on.
func (d *Decoder) Selector() string {
	return d.selector
}

// IsTarget reports whether callData starts with the configured selector.
func (d *Decoder) IsTarget(callData string) bool {
	return IsTarget(callData, d.selector)
}

// DecodeMatchOrders extracts the taker order's economic parameters from a
// matchOrders call. Any structural problem (wrong selector, truncated data,
// a same-selector collision with a different parameter shape, an
// out-of-range side byte) returns an error wrapping domain.ErrDecodeMismatch
// and never a partially filled event.
func (d *Decoder) DecodeMatchOrders(callData string) (domain.DecodedOrderEvent, error) {
	var zero domain.DecodedOrderEvent

	data := NormalizeSelector(callData)
	if len(data) < selectorHexLen {
		return zero, fmt.Errorf("abi: calldata shorter than selector: %w", domain.ErrDecodeMismatch)
	}
	if data[:selectorHexLen] != d.selector {
		return zero, fmt.Errorf("abi: selector %s is not %s: %w", data[:selectorHexLen], d.selector, domain.ErrDecodeMismatch)
	}

	raw, err := hex.DecodeString(data[selectorHexLen:])
	if err != nil {
		return zero, fmt.Errorf("abi: calldata is not valid hex: %w", domain.ErrDecodeMismatch)
	}

	values, err := matchOrdersArgs.Unpack(raw)
	if err != nil {
		return zero, fmt.Errorf("abi: unpack matchOrders: %v: %w", err, domain.ErrDecodeMismatch)
	}
	if len(values) != 4 {
		return zero, fmt.Errorf("abi: expected 4 arguments, got %d: %w", len(values), domain.ErrDecodeMismatch)
	}

	taker := *ethabi.ConvertType(values[0], new(exchangeOrder)).(*exchangeOrder)

	side, ok := domain.SideFromUint8(taker.Side)
	if !ok {
		return zero, fmt.Errorf("abi: side byte %d out of range: %w", taker.Side, domain.ErrDecodeMismatch)
	}
	if taker.TokenId == nil || taker.MakerAmount == nil {
		return zero, fmt.Errorf("abi: missing tokenId or makerAmount: %w", domain.ErrDecodeMismatch)
	}

	return domain.DecodedOrderEvent{
		Maker:         domain.NormalizeAddress(taker.Maker.Hex()),
		Signer:        domain.NormalizeAddress(taker.Signer.Hex()),
		TokenID:       taker.TokenId.String(),
		MakerAmount:   new(big.Int).Set(taker.MakerAmount),
		Side:          side,
		SignatureType: int(taker.SignatureType),
	}, nil
}

// EncodeMatchOrders packs a taker order into matchOrders calldata with the
// decoder's selector. Used by tests and tooling to build known-good
// payloads; the maker-order list is encoded empty.
func (d *Decoder) EncodeMatchOrders(ev domain.DecodedOrderEvent) (string, error) {
	sideByte := uint8(0)
	if ev.Side == domain.SideSell {
		sideByte = 1
	}
	taker := exchangeOrder{
		Salt:          big.NewInt(0),
		Maker:         common.HexToAddress(ev.Maker),
		Signer:        common.HexToAddress(ev.Signer),
		Taker:         common.Address{},
		TokenId:       mustParseBig(ev.TokenID),
		MakerAmount:   ev.MakerAmount,
		TakerAmount:   big.NewInt(0),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          sideByte,
		SignatureType: uint8(ev.SignatureType),
		Signature:     []byte{},
	}

	packed, err := matchOrdersArgs.Pack(taker, []exchangeOrder{}, big.NewInt(0), []*big.Int{})
	if err != nil {
		return "", fmt.Errorf("abi: pack matchOrders: %w", err)
	}
	return "0x" + d.selector + hex.EncodeToString(packed), nil
}

func mustParseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
