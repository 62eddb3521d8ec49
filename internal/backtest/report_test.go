package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

func sampleReport() domain.BacktestReport {
	return domain.BacktestReport{
		Address: "0x1111111111111111111111111111111111111111",
		Entries: []domain.WalletLedgerEntry{
			{
				Transfer:       domain.TokenTransfer{Hash: "0xsell"},
				Time:           time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				InteractedWith: domain.ContractCTFExchange,
				FunctionName:   "matchOrders",
				TokenID:        "777",
				Side:           domain.SideSell,
				Value:          decimal.NewFromInt(25),
				RealizedPnL:    decimal.NewFromInt(5),
			},
			{
				Transfer:       domain.TokenTransfer{Hash: "0xbuy"},
				Time:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				InteractedWith: domain.ContractCTFExchange,
				FunctionName:   "matchOrders",
				TokenID:        "777",
				Side:           domain.SideBuy,
				Value:          decimal.NewFromInt(20),
				RealizedPnL:    decimal.NewFromInt(5),
			},
		},
		WinRate:          decimal.NewFromInt(1),
		TotalRealizedPnL: decimal.NewFromInt(5),
		TotalOpenValue:   decimal.NewFromInt(3),
		TotalPnL:         decimal.NewFromInt(8),
		GeneratedAt:      time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, csvHeader, header)

	first := records[1]
	assert.Equal(t, "0xsell", first[0])
	assert.Equal(t, "2026-03-02T00:00:00Z", first[1])
	assert.Equal(t, "matchOrders", first[3])
	assert.Equal(t, "SELL", first[5])
	assert.Equal(t, "25", first[6])
	assert.Equal(t, "5", first[10])
	assert.Equal(t, "1.0000", first[11])
	assert.Equal(t, "8", first[14])
}

type memBlob struct {
	path string
	data []byte
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.path = path
	m.data = b
	return nil
}

func TestArchiveCSV(t *testing.T) {
	blob := &memBlob{}
	path, err := ArchiveCSV(context.Background(), blob, sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "backtests/0x1111111111111111111111111111111111111111/20260302T120000Z.csv", path)
	assert.Equal(t, path, blob.path)
	assert.True(t, strings.HasPrefix(string(blob.data), "hash,time,"))
}
