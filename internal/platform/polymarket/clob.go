package polymarket

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kzhaodev/mirrorbot/internal/crypto"
	"github.com/kzhaodev/mirrorbot/internal/domain"
)

// ClobConfig identifies the trading account and the exchange the orders are
// verified against.
type ClobConfig struct {
	BaseURL string
	// Funder is the address that holds the balances (proxy wallet); falls
	// back to the signer address when empty.
	Funder        string
	SignatureType int
	// VerifyingContract is the exchange the EIP-712 order domain binds to.
	// Defaults to the CTF exchange.
	VerifyingContract string
}

// ClobClient is the REST client for the CLOB API: orderbooks, balances, and
// signed order submission.
type ClobClient struct {
	cfg        ClobConfig
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a CLOB client. hmac may be nil until DeriveAPIKey
// is called.
func NewClobClient(cfg ClobConfig, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	if cfg.Funder == "" && signer != nil {
		cfg.Funder = signer.Address().Hex()
	}
	if cfg.VerifyingContract == "" {
		cfg.VerifyingContract = domain.ContractCTFExchange
	}
	return &ClobClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// GetBook fetches the orderbook snapshot for a token. Unauthenticated.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (Book, error) {
	path := "/book?token_id=" + url.QueryEscape(tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return Book{}, fmt.Errorf("polymarket/clob: create book request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Book{}, fmt.Errorf("polymarket/clob: get book: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Book{}, fmt.Errorf("polymarket/clob: read book response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return Book{}, fmt.Errorf("polymarket/clob: get book: %w", err)
	}

	var book Book
	if err := json.Unmarshal(body, &book); err != nil {
		return Book{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// GetBalanceAllowance returns the available collateral (USDC) balance.
func (c *ClobClient) GetBalanceAllowance(ctx context.Context) (decimal.Decimal, error) {
	path := fmt.Sprintf("/balance-allowance?asset_type=COLLATERAL&signature_type=%d", c.cfg.SignatureType)

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: balance allowance: %w", err)
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}
	raw, ok := new(big.Int).SetString(result.Balance, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("polymarket/clob: balance %q not a number", result.Balance)
	}
	// Balance comes back in raw 6-decimal USDC units.
	return decimal.NewFromBigInt(raw, -6), nil
}

// CreateMarketOrder builds, signs, and submits a marketable FOK order. For
// a BUY, Amount is the USDC to spend; for a SELL, the shares to unload. The
// crossing price is taken from the live book.
func (c *ClobClient) CreateMarketOrder(ctx context.Context, args domain.MarketOrderArgs) (domain.OrderResult, error) {
	book, err := c.GetBook(ctx, args.TokenID)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var price decimal.Decimal
	var ok bool
	if args.Side == domain.SideBuy {
		price, ok = book.BestAsk()
	} else {
		price, ok = book.BestBid()
	}
	if !ok {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: no crossing liquidity for %s %s", args.Side, args.TokenID)
	}

	// For BUY: maker pays USDC, takes shares. For SELL: maker gives
	// shares, takes USDC. Amounts are raw 6-decimal integers.
	var makerAmount, takerAmount decimal.Decimal
	if args.Side == domain.SideBuy {
		makerAmount = args.Amount
		takerAmount = args.Amount.Div(price)
	} else {
		makerAmount = args.Amount
		takerAmount = args.Amount.Mul(price)
	}

	sideInt := 0
	if args.Side == domain.SideSell {
		sideInt = 1
	}
	payload := crypto.OrderPayload{
		Salt:          randomSalt(),
		Maker:         c.cfg.Funder,
		Signer:        c.signer.Address().Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       args.TokenID,
		MakerAmount:   toRawUnits(makerAmount),
		TakerAmount:   toRawUnits(takerAmount),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideInt,
		SignatureType: c.cfg.SignatureType,
	}

	signature, err := c.signer.SignOrder(payload, c.cfg.VerifyingContract)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	return c.PostOrder(ctx, payload, signature)
}

// PostOrder submits a signed order as fill-or-kill.
func (c *ClobClient) PostOrder(ctx context.Context, payload crypto.OrderPayload, signature string) (domain.OrderResult, error) {
	sideStr := "BUY"
	if payload.Side == 1 {
		sideStr = "SELL"
	}
	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenID":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          sideStr,
			"signatureType": payload.SignatureType,
			"signature":     signature,
		},
		"owner":     c.ownerKey(),
		"orderType": "FOK",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult apiOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	return apiResult.toDomain(), nil
}

// DeriveAPIKey runs the L1 auth flow and stores the resulting HMAC
// credentials on the client.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}
	return nil
}

func (c *ClobClient) ownerKey() string {
	if c.hmacAuth != nil {
		return c.hmacAuth.Key
	}
	return ""
}

// doAuthenticatedRequest builds, HMAC-signs, sends, and reads a request
// against the CLOB API, returning the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		headers := c.hmacAuth.L2Headers(c.signer.Address().Hex(), method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// toRawUnits converts a human amount to the raw 6-decimal integer string
// the exchange expects.
func toRawUnits(v decimal.Decimal) string {
	return v.Shift(6).Round(0).BigInt().String()
}

func randomSalt() string {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 60))
	if err != nil {
		// crypto/rand failing means far bigger problems; a time-based salt
		// keeps the order unique.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return n.String()
}
