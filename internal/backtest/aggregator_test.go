package backtest

import (
	"context"
	"log/slog"
	"math/big"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzhaodev/mirrorbot/internal/abi"
	"github.com/kzhaodev/mirrorbot/internal/domain"
)

const (
	testSelector = "d2539b37"
	testWallet   = "0x1111111111111111111111111111111111111111"
	testToken    = "7000000000000000000000000000000000000001"
)

type fakeExplorer struct {
	transfers  []domain.TokenTransfer
	txs        map[string]domain.CachedTx
	txCalls    int
	startBlock uint64
	endBlock   uint64
}

func (f *fakeExplorer) TokenTransfers(_ context.Context, _ string, startBlock, endBlock uint64) ([]domain.TokenTransfer, error) {
	f.startBlock = startBlock
	f.endBlock = endBlock
	return f.transfers, nil
}

func (f *fakeExplorer) TransactionByHash(_ context.Context, hash string) (domain.CachedTx, error) {
	f.txCalls++
	tx, ok := f.txs[hash]
	if !ok {
		return domain.CachedTx{}, domain.ErrNotFound
	}
	return tx, nil
}

type fakePositions struct {
	positions []domain.Position
}

func (f *fakePositions) GetPositions(_ context.Context, _ string) ([]domain.Position, error) {
	return f.positions, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// encodedOrder builds valid matchOrders calldata so the aggregator
// exercises the real decoder.
func encodedOrder(t *testing.T, dec *abi.Decoder, side domain.OrderSide, usdc int64) string {
	t.Helper()
	input, err := dec.EncodeMatchOrders(domain.DecodedOrderEvent{
		Maker:         testWallet,
		Signer:        testWallet,
		TokenID:       testToken,
		MakerAmount:   big.NewInt(usdc * 1_000_000),
		Side:          side,
		SignatureType: 0,
	})
	require.NoError(t, err)
	return input
}

func transfer(hash string, from, to string, rawValue int64, ts int64) domain.TokenTransfer {
	return domain.TokenTransfer{
		Hash:      hash,
		From:      from,
		To:        to,
		Value:     strconv.FormatInt(rawValue, 10),
		TimeStamp: strconv.FormatInt(ts, 10),
		GasPrice:  "30000000000",
		GasUsed:   "100000",
	}
}

func TestAggregateRealizedPnL(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	// Two buys of 10 USDC and one sell of 25 USDC on the same token:
	// realized P&L 5, one winning token out of one.
	exchange := domain.ContractCTFExchange
	explorer := &fakeExplorer{
		transfers: []domain.TokenTransfer{
			transfer("0xbuy1", testWallet, exchange, 10_000_000, 1000),
			transfer("0xbuy2", testWallet, exchange, 10_000_000, 2000),
			transfer("0xsell", exchange, testWallet, 25_000_000, 3000),
		},
		txs: map[string]domain.CachedTx{
			"0xbuy1": {Hash: "0xbuy1", To: exchange, Input: encodedOrder(t, dec, domain.SideBuy, 10)},
			"0xbuy2": {Hash: "0xbuy2", To: exchange, Input: encodedOrder(t, dec, domain.SideBuy, 10)},
			"0xsell": {Hash: "0xsell", To: exchange, Input: encodedOrder(t, dec, domain.SideSell, 25)},
		},
	}

	agg := NewAggregator(explorer, nil, dec, testLogger())
	report, err := agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)

	require.Len(t, report.PerToken, 1)
	assert.Equal(t, testToken, report.PerToken[0].TokenID)
	assert.True(t, report.PerToken[0].RealizedPnL.Equal(decimal.NewFromInt(5)),
		"realized = %s", report.PerToken[0].RealizedPnL)
	assert.True(t, report.TotalRealizedPnL.Equal(decimal.NewFromInt(5)))
	assert.True(t, report.WinRate.Equal(decimal.NewFromInt(1)))
	assert.True(t, report.TotalPnL.Equal(decimal.NewFromInt(5)))

	// Newest first.
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "0xsell", report.Entries[0].Transfer.Hash)
	assert.Equal(t, "matchOrders", report.Entries[0].FunctionName)
	assert.Equal(t, domain.SideSell, report.Entries[0].Side)
}

func TestAggregateSkipsNonPlatformTransfers(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	explorer := &fakeExplorer{
		transfers: []domain.TokenTransfer{
			transfer("0xother", testWallet, "0x9999999999999999999999999999999999999999", 5_000_000, 1000),
		},
	}
	agg := NewAggregator(explorer, nil, dec, testLogger())
	report, err := agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)

	assert.Empty(t, report.Entries)
	assert.Zero(t, explorer.txCalls, "non-platform rows must not be enriched")
}

func TestAggregateWindowsExplorerByBlockRange(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	explorer := &fakeExplorer{}
	agg := NewAggregator(explorer, nil, dec, testLogger())

	_, err = agg.Aggregate(context.Background(), testWallet, 50_000_000, 60_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000_000), explorer.startBlock)
	assert.Equal(t, uint64(60_000_000), explorer.endBlock)

	// A zero end block means no upper bound.
	_, err = agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), explorer.startBlock)
	assert.Equal(t, uint64(99999999), explorer.endBlock)
}

func TestAggregateRelayRowsNotEnriched(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	explorer := &fakeExplorer{
		transfers: []domain.TokenTransfer{
			transfer("0xrelay", domain.ContractConditionalTokens, testWallet, 3_000_000, 1000),
		},
	}
	agg := NewAggregator(explorer, nil, dec, testLogger())
	report, err := agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	e := report.Entries[0]
	assert.True(t, e.Relay)
	assert.Equal(t, domain.ContractRelayHub, e.InteractedWith)
	assert.Empty(t, e.FunctionName)
	assert.Zero(t, explorer.txCalls, "relay rows must not be enriched")
	assert.Empty(t, report.PerToken, "undecoded rows carry no P&L")
}

func TestAggregateUndecodedRowsExcludedFromPnL(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	exchange := domain.ContractCTFExchange
	explorer := &fakeExplorer{
		transfers: []domain.TokenTransfer{
			transfer("0xbuy", testWallet, exchange, 10_000_000, 1000),
			transfer("0xmisc", testWallet, exchange, 99_000_000, 2000),
		},
		txs: map[string]domain.CachedTx{
			"0xbuy":  {Hash: "0xbuy", To: exchange, Input: encodedOrder(t, dec, domain.SideBuy, 10)},
			"0xmisc": {Hash: "0xmisc", To: exchange, Input: "0xdeadbeef"},
		},
	}
	agg := NewAggregator(explorer, nil, dec, testLogger())
	report, err := agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)

	require.Len(t, report.Entries, 2)
	require.Len(t, report.PerToken, 1)
	assert.True(t, report.TotalRealizedPnL.Equal(decimal.NewFromInt(-10)),
		"only the decoded buy counts, got %s", report.TotalRealizedPnL)
	assert.True(t, report.WinRate.IsZero())
}

func TestAggregateMergesOpenPositions(t *testing.T) {
	dec, err := abi.NewDecoder(testSelector)
	require.NoError(t, err)

	exchange := domain.ContractCTFExchange
	explorer := &fakeExplorer{
		transfers: []domain.TokenTransfer{
			transfer("0xbuy", testWallet, exchange, 10_000_000, 1000),
		},
		txs: map[string]domain.CachedTx{
			"0xbuy": {Hash: "0xbuy", To: exchange, Input: encodedOrder(t, dec, domain.SideBuy, 10)},
		},
	}
	positions := &fakePositions{positions: []domain.Position{
		{TokenID: testToken, Size: decimal.NewFromInt(20), CurrentValue: decimal.NewFromInt(12)},
	}}

	agg := NewAggregator(explorer, positions, dec, testLogger())
	report, err := agg.Aggregate(context.Background(), testWallet, 0, 0)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	assert.True(t, report.Entries[0].CurrentPosition.Equal(decimal.NewFromInt(20)))
	assert.True(t, report.Entries[0].CurrentValue.Equal(decimal.NewFromInt(12)))
	assert.True(t, report.TotalOpenValue.Equal(decimal.NewFromInt(12)))
	// -10 realized + 12 open.
	assert.True(t, report.TotalPnL.Equal(decimal.NewFromInt(2)), "total = %s", report.TotalPnL)
}

func TestGasCost(t *testing.T) {
	// 30 gwei * 100k gas = 0.003 MATIC.
	got := gasCost("30000000000", "100000")
	assert.True(t, got.Equal(decimal.RequireFromString("0.003")), "got %s", got)
	assert.True(t, gasCost("bad", "100000").IsZero())
}
