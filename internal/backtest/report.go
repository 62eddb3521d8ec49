package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/kzhaodev/mirrorbot/internal/domain"
)

var csvHeader = []string{
	"hash",
	"time",
	"interactedWith",
	"functionName",
	"tokenId",
	"side",
	"value",
	"gasCost",
	"currentPosition",
	"currentValue",
	"realized P&L",
	"winRate",
	"totalRealizedP&L",
	"totalCurrentValue",
	"totalP&L",
}

// WriteCSV renders the report's ledger, newest first, with the summary
// columns repeated on every row so the file is self-contained when opened
// in a spreadsheet.
func WriteCSV(w io.Writer, report domain.BacktestReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("backtest: write csv header: %w", err)
	}
	for _, e := range report.Entries {
		row := []string{
			e.Transfer.Hash,
			e.Time.UTC().Format(time.RFC3339),
			e.InteractedWith,
			e.FunctionName,
			e.TokenID,
			string(e.Side),
			e.Value.String(),
			e.GasCost.String(),
			e.CurrentPosition.String(),
			e.CurrentValue.String(),
			e.RealizedPnL.String(),
			report.WinRate.StringFixed(4),
			report.TotalRealizedPnL.String(),
			report.TotalOpenValue.String(),
			report.TotalPnL.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("backtest: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("backtest: flush csv: %w", err)
	}
	return nil
}

// ArchiveCSV renders the report and uploads it through the blob writer
// under backtests/<address>/<timestamp>.csv.
func ArchiveCSV(ctx context.Context, blob domain.BlobWriter, report domain.BacktestReport) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, report); err != nil {
		return "", err
	}
	path := fmt.Sprintf("backtests/%s/%s.csv", report.Address, report.GeneratedAt.Format("20060102T150405Z"))
	if err := blob.Put(ctx, path, &buf, "text/csv"); err != nil {
		return "", fmt.Errorf("backtest: archive report: %w", err)
	}
	return path, nil
}
