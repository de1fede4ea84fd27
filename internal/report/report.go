// Package report renders batch distribution reports as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"time"

	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet       = "Batch"
	DistributionsSheet = "Distributions"
	contentType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var distributionHeaders = []string{
	"DistributionID", "Sender", "SenderRole", "Receiver", "ReceiverRole",
	"BigBoxes", "Status", "CreatedAt", "ShippedAt", "DeliveredAt", "VerifiedAt", "RejectionReason",
}

// Source is the part of the ledger a report reads from.
type Source interface {
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)
	Quantities(ctx context.Context, batchID string) (*ledger.BatchQuantities, error)
	ListDistributions(ctx context.Context, f ledger.DistributionFilter) ([]models.Distribution, error)
}

// BatchWorkbook builds a two-sheet workbook: batch summary with remaining
// breakdown, and one row per distribution of the batch.
func BatchWorkbook(ctx context.Context, src Source, batchID string) (*excelize.File, error) {
	b, err := src.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	q, err := src.Quantities(ctx, batchID)
	if err != nil {
		return nil, err
	}
	dists, err := src.ListDistributions(ctx, ledger.DistributionFilter{BatchID: batchID})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, b, q); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(DistributionsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeDistributions(f, dists); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSummary(f *excelize.File, b *models.Batch, q *ledger.BatchQuantities) error {
	rows := [][]any{
		{"BatchID", b.BatchID},
		{"Medicine", b.MedicineName},
		{"Manufacturer", b.ManufacturerName},
		{"ExpiryDate", b.ExpiryDate.Format("2006-01-02")},
		{"Status", string(b.Status)},
		{"SupplyChainComplete", b.SupplyChainComplete},
		{"TotalCartons", q.TotalCartons},
		{"TotalBigBoxes", q.TotalBigBoxes},
		{"TotalMedicineCount", q.TotalMedicineCount},
		{"RemainingMedicineCount", q.RemainingCount},
		{"RemainingCartons", q.Remaining.Cartons},
		{"RemainingBigBoxes", q.Remaining.BigBoxes},
		{"RemainingSmallBoxes", q.Remaining.SmallBoxes},
		{"RemainingStrips", q.Remaining.Strips},
		{"RemainingTablets", q.Remaining.Tablets},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	return nil
}

func writeDistributions(f *excelize.File, dists []models.Distribution) error {
	if err := f.SetSheetRow(DistributionsSheet, "A1", &distributionHeaders); err != nil {
		return err
	}
	for i, d := range dists {
		row := []any{
			d.DistributionID, d.SenderID, string(d.SenderRole), d.ReceiverID, string(d.ReceiverRole),
			d.BigBoxCount, string(d.Status), stamp(&d.CreatedAt), stamp(d.ShippedAt),
			stamp(d.DeliveredAt), stamp(d.VerifiedAt), d.RejectionReason,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DistributionsSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
