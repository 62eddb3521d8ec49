package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key (hardhat account #0); never funded on mainnet.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())

	// 0x prefix is tolerated.
	s2, err := NewSigner("0x"+testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), s2.Address())

	_, err = NewSigner("not-a-key", 137)
	assert.Error(t, err)
}

func TestSignOrderShapeAndDeterminism(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	order := OrderPayload{
		Salt:          "123456789",
		Maker:         s.Address().Hex(),
		Signer:        s.Address().Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   "25000000",
		TakerAmount:   "50000000",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: 0,
	}

	sig1, err := s.SignOrder(order, "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig1, "0x"))
	assert.Len(t, sig1, 2+65*2)

	v := sig1[len(sig1)-2:]
	assert.Contains(t, []string{"1b", "1c"}, v)

	sig2, err := s.SignOrder(order, "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e")
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	// A different verifying contract must change the signature.
	sig3, err := s.SignOrder(order, "0xc5d563a36ae78145c45a50134d48a1215220f80a")
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	_, err = s.SignOrder(OrderPayload{Salt: "abc"}, "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e")
	assert.Error(t, err)
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	sig, err := s.SignAuthMessage("1700000000", 0)
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)

	again, err := s.SignAuthMessage("1700000000", 0)
	require.NoError(t, err)
	assert.Equal(t, sig, again)

	other, err := s.SignAuthMessage("1700000001", 0)
	require.NoError(t, err)
	assert.NotEqual(t, sig, other)
}

func TestL2HeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{
		Key:        "key-1",
		Secret:     "c2VjcmV0LWJ5dGVz", // base64("secret-bytes")
		Passphrase: "pass",
	}

	h1 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	h2 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	assert.Equal(t, h1, h2)
	assert.Equal(t, "key-1", h1["POLY_API_KEY"])
	assert.Equal(t, "1700000000", h1["POLY_TIMESTAMP"])
	assert.NotEmpty(t, h1["POLY_SIGNATURE"])

	// Changing any input changes the signature.
	h3 := auth.L2HeadersAt("0xabc", "GET", "/order", `{"x":1}`, 1700000000)
	assert.NotEqual(t, h1["POLY_SIGNATURE"], h3["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "supersecretkey", Secret: "supersecret"}
	out := auth.String()
	assert.NotContains(t, out, "supersecretkey")
	assert.NotContains(t, out, "supersecret\"")
	assert.Contains(t, out, "supe****")
}
