package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzhaodev/mirrorbot/internal/crypto"
	"github.com/kzhaodev/mirrorbot/internal/domain"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testKey, 137)
	require.NoError(t, err)
	return s
}

func testAuth() *crypto.HMACAuth {
	return &crypto.HMACAuth{Key: "api-key", Secret: "c2VjcmV0", Passphrase: "pass"}
}

func TestGetBalanceAllowance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance-allowance", r.URL.Path)
		assert.Equal(t, "COLLATERAL", r.URL.Query().Get("asset_type"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		json.NewEncoder(w).Encode(map[string]any{"balance": "123450000"})
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL}, newTestSigner(t), testAuth())

	balance, err := c.GetBalanceAllowance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("123.45")), "got %s", balance)
}

func TestCreateMarketOrderBuy(t *testing.T) {
	var posted map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/book":
			json.NewEncoder(w).Encode(Book{
				AssetID: "42",
				Bids:    []BookLevel{{Price: "0.45", Size: "100"}},
				Asks:    []BookLevel{{Price: "0.50", Size: "200"}, {Price: "0.55", Size: "50"}},
			})
		case "/order":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			json.NewEncoder(w).Encode(map[string]any{"success": true, "orderID": "ord-1", "status": "matched"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL}, newTestSigner(t), testAuth())

	result, err := c.CreateMarketOrder(context.Background(), domain.MarketOrderArgs{
		TokenID: "42",
		Side:    domain.SideBuy,
		Amount:  decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ord-1", result.OrderID)

	require.NotNil(t, posted)
	order := posted["order"].(map[string]any)
	assert.Equal(t, "BUY", order["side"])
	assert.Equal(t, "42", order["tokenID"])
	// 25 USDC at best ask 0.50 -> 50 shares.
	assert.Equal(t, "25000000", order["makerAmount"])
	assert.Equal(t, "50000000", order["takerAmount"])
	assert.NotEmpty(t, order["signature"])
	assert.Equal(t, "FOK", posted["orderType"])
	assert.Equal(t, "api-key", posted["owner"])
}

func TestCreateMarketOrderSellUsesBestBid(t *testing.T) {
	var posted map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/book":
			json.NewEncoder(w).Encode(Book{
				AssetID: "42",
				Bids:    []BookLevel{{Price: "0.40", Size: "10"}, {Price: "0.45", Size: "100"}},
				Asks:    []BookLevel{{Price: "0.50", Size: "200"}},
			})
		case "/order":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			json.NewEncoder(w).Encode(map[string]any{"success": true, "orderID": "ord-2", "status": "matched"})
		}
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL}, newTestSigner(t), testAuth())

	_, err := c.CreateMarketOrder(context.Background(), domain.MarketOrderArgs{
		TokenID: "42",
		Side:    domain.SideSell,
		Amount:  decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	order := posted["order"].(map[string]any)
	assert.Equal(t, "SELL", order["side"])
	// Selling 20 shares at best bid 0.45 -> 9 USDC.
	assert.Equal(t, "20000000", order["makerAmount"])
	assert.Equal(t, "9000000", order["takerAmount"])
}

func TestCreateMarketOrderEmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Book{AssetID: "42"})
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL}, newTestSigner(t), testAuth())

	_, err := c.CreateMarketOrder(context.Background(), domain.MarketOrderArgs{
		TokenID: "42",
		Side:    domain.SideBuy,
		Amount:  decimal.NewFromInt(5),
	})
	assert.Error(t, err)
}

func TestCheckHTTPStatusMapping(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(200, nil))
	assert.ErrorIs(t, checkHTTPStatus(404, []byte("x")), domain.ErrNotFound)
	assert.ErrorIs(t, checkHTTPStatus(401, []byte("x")), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(429, []byte("x")), domain.ErrRateLimited)
	assert.Error(t, checkHTTPStatus(500, []byte("x")))
}

func TestGetPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xwallet", r.URL.Query().Get("user"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"asset": "42", "size": 12.5, "currentValue": 6.25},
			{"asset": "99", "size": 3.0, "currentValue": 1.2},
		})
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL)

	positions, err := c.GetPositions(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "42", positions[0].TokenID)
	assert.True(t, positions[0].Size.Equal(decimal.RequireFromString("12.5")))

	size, err := c.GetPositionSize(context.Background(), "0xwallet", "99")
	require.NoError(t, err)
	assert.True(t, size.Equal(decimal.NewFromInt(3)))

	size, err = c.GetPositionSize(context.Background(), "0xwallet", "404")
	require.NoError(t, err)
	assert.True(t, size.IsZero())
}

func TestBookBestLevels(t *testing.T) {
	book := Book{
		Bids: []BookLevel{{Price: "0.40"}, {Price: "0.45"}, {Price: "bad"}},
		Asks: []BookLevel{{Price: "0.55"}, {Price: "0.50"}},
	}

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.RequireFromString("0.45")))

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.RequireFromString("0.50")))

	empty := Book{}
	_, ok = empty.BestBid()
	assert.False(t, ok)
}
