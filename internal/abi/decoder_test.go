package abi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

const testSelector = "0xd2539b37"

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder(testSelector)
	require.NoError(t, err)
	return d
}

func TestNewDecoderRejectsBadSelector(t *testing.T) {
	_, err := NewDecoder("0x1234")
	assert.Error(t, err)

	_, err = NewDecoder("0xzzzzzzzz")
	assert.Error(t, err)
}

func TestDecodeMatchOrdersRoundTrip(t *testing.T) {
	d := newTestDecoder(t)

	want := domain.DecodedOrderEvent{
		Maker:         "0x9d84ce0306f8551e02efef1680475fc0f1dc1344",
		Signer:        "0x9d84ce0306f8551e02efef1680475fc0f1dc1344",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   big.NewInt(25_000_000), // 25 USDC
		Side:          domain.SideBuy,
		SignatureType: 2,
	}

	callData, err := d.EncodeMatchOrders(want)
	require.NoError(t, err)
	assert.True(t, d.IsTarget(callData))

	got, err := d.DecodeMatchOrders(callData)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeMatchOrdersSellSide(t *testing.T) {
	d := newTestDecoder(t)

	want := domain.DecodedOrderEvent{
		Maker:         "0x00000000000000000000000000000000000000aa",
		Signer:        "0x00000000000000000000000000000000000000bb",
		TokenID:       "12345",
		MakerAmount:   big.NewInt(4_200_000), // 4.2 shares
		Side:          domain.SideSell,
		SignatureType: 0,
	}

	callData, err := d.EncodeMatchOrders(want)
	require.NoError(t, err)

	got, err := d.DecodeMatchOrders(callData)
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, got.Side)
	assert.Equal(t, want.MakerAmount, got.MakerAmount)
	assert.Equal(t, want.TokenID, got.TokenID)
}

func TestDecodeMatchOrdersWrongSelector(t *testing.T) {
	d := newTestDecoder(t)

	_, err := d.DecodeMatchOrders("0xa9059cbb" + "00000000")
	assert.ErrorIs(t, err, domain.ErrDecodeMismatch)
}

func TestDecodeMatchOrdersTruncated(t *testing.T) {
	d := newTestDecoder(t)

	valid, err := d.EncodeMatchOrders(domain.DecodedOrderEvent{
		Maker:       "0x00000000000000000000000000000000000000aa",
		Signer:      "0x00000000000000000000000000000000000000aa",
		TokenID:     "1",
		MakerAmount: big.NewInt(1),
		Side:        domain.SideBuy,
	})
	require.NoError(t, err)

	// Cut the payload mid-word; the decoder must fail closed rather than
	// return partial economics.
	_, err = d.DecodeMatchOrders(valid[:len(valid)/2])
	assert.ErrorIs(t, err, domain.ErrDecodeMismatch)

	_, err = d.DecodeMatchOrders("0xd2")
	assert.ErrorIs(t, err, domain.ErrDecodeMismatch)

	_, err = d.DecodeMatchOrders(testSelector)
	assert.ErrorIs(t, err, domain.ErrDecodeMismatch)
}

func TestDecodeMatchOrdersNotHex(t *testing.T) {
	d := newTestDecoder(t)

	_, err := d.DecodeMatchOrders(testSelector + "nothexatall")
	assert.ErrorIs(t, err, domain.ErrDecodeMismatch)
}

func TestDecodeMatchOrdersIdempotent(t *testing.T) {
	d := newTestDecoder(t)

	callData, err := d.EncodeMatchOrders(domain.DecodedOrderEvent{
		Maker:       "0x00000000000000000000000000000000000000aa",
		Signer:      "0x00000000000000000000000000000000000000aa",
		TokenID:     "777",
		MakerAmount: big.NewInt(1_000_000),
		Side:        domain.SideBuy,
	})
	require.NoError(t, err)

	first, err := d.DecodeMatchOrders(callData)
	require.NoError(t, err)
	second, err := d.DecodeMatchOrders(callData)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
