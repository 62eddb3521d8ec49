package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Pre-computed keccak256 of the canonical EIP-712 type strings.
var (
	// Domain without verifyingContract, used by ClobAuth.
	authDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// Domain with verifyingContract, used by exchange orders.
	orderDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"),
	)

	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

const clobAuthMessage = "This message attests that I control the given wallet"

// OrderPayload is the 12-field exchange order to be signed. Addresses and
// large numbers are strings to preserve precision across JSON boundaries;
// the same payload is what gets POSTed to the CLOB.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 = BUY, 1 = SELL
	SignatureType int    `json:"signatureType"` // 0 = EOA, 1 = POLY_PROXY, 2 = POLY_GNOSIS_SAFE
}

// Signer produces EIP-712 signatures for CLOB auth messages and exchange
// orders.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int

	authDomainSep []byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID (137 for Polygon mainnet, 80002 for Amoy).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}
	s.authDomainSep = ethcrypto.Keccak256(concatBytes(
		authDomainTypeHash,
		ethcrypto.Keccak256([]byte("ClobAuthDomain")),
		ethcrypto.Keccak256([]byte("1")),
		bigIntTo32Bytes(big.NewInt(int64(chainID))),
	))
	return s, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuthMessage signs the ClobAuth message used to derive or validate L1
// API credentials. Returns a hex-encoded 65-byte signature.
func (s *Signer) SignAuthMessage(timestamp string, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(concatBytes(
		clobAuthTypeHash,
		common.LeftPadBytes(s.address.Bytes(), 32),
		ethcrypto.Keccak256([]byte(timestamp)),
		bigIntTo32Bytes(big.NewInt(nonce)),
		ethcrypto.Keccak256([]byte(clobAuthMessage)),
	))
	return s.signDigest(eip712Hash(s.authDomainSep, structHash))
}

// SignOrder signs an exchange order against the given verifying contract
// (the CTF exchange or neg-risk exchange the order is routed to). Returns a
// hex-encoded 65-byte signature.
func (s *Signer) SignOrder(order OrderPayload, verifyingContract string) (string, error) {
	domainSep := ethcrypto.Keccak256(concatBytes(
		orderDomainTypeHash,
		ethcrypto.Keccak256([]byte("Polymarket CTF Exchange")),
		ethcrypto.Keccak256([]byte("1")),
		bigIntTo32Bytes(big.NewInt(int64(s.chainID))),
		common.LeftPadBytes(common.HexToAddress(verifyingContract).Bytes(), 32),
	))

	structHash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.signDigest(eip712Hash(domainSep, structHash))
}

// eip712Hash computes keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, domainSep, structHash))
}

// signDigest signs a 32-byte digest and returns r || s || v hex-encoded,
// with v normalized to {27, 28}.
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func orderStructHash(o OrderPayload) ([]byte, error) {
	nums := make([]*big.Int, 0, 7)
	for _, f := range []struct{ name, val string }{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	} {
		n, ok := new(big.Int).SetString(f.val, 10)
		if !ok {
			return nil, fmt.Errorf("crypto: invalid %s %q", f.name, f.val)
		}
		nums = append(nums, n)
	}

	return ethcrypto.Keccak256(concatBytes(
		orderTypeHash,
		bigIntTo32Bytes(nums[0]),
		common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Signer).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Taker).Bytes(), 32),
		bigIntTo32Bytes(nums[1]),
		bigIntTo32Bytes(nums[2]),
		bigIntTo32Bytes(nums[3]),
		bigIntTo32Bytes(nums[4]),
		bigIntTo32Bytes(nums[5]),
		bigIntTo32Bytes(nums[6]),
		bigIntTo32Bytes(big.NewInt(int64(o.Side))),
		bigIntTo32Bytes(big.NewInt(int64(o.SignatureType))),
	)), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
