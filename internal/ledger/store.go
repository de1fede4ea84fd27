package ledger

import (
	"context"

	"medchain-backend/internal/models"
)

type BatchFilter struct {
	ManufacturerID string
	Limit          int
}

type DistributionFilter struct {
	BatchID        string
	SenderID       string
	ReceiverID     string
	ManufacturerID string
	Status         models.DistributionStatus
}

// Store is the persistence boundary of the ledger. Reads outside UpdateBatch
// are unlocked snapshots.
type Store interface {
	// CreateBatch inserts the batch together with its initial history entries.
	CreateBatch(ctx context.Context, batch *models.Batch) error
	// GetBatch loads the batch and its history ordered oldest first.
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)
	ListBatches(ctx context.Context, f BatchFilter) ([]models.Batch, error)
	CountBatches(ctx context.Context, f BatchFilter) (int64, error)

	GetDistribution(ctx context.Context, distributionID string) (*models.Distribution, error)
	ListDistributions(ctx context.Context, f DistributionFilter) ([]models.Distribution, error)
	// SumBoxes returns the big boxes received and sent by holder for a batch,
	// rejected distributions excluded.
	SumBoxes(ctx context.Context, batchID, holderID string) (received, sent int64, err error)

	ListScans(ctx context.Context, limit int) ([]models.Scan, error)
	StepCounts(ctx context.Context) (map[string]int64, error)

	// UpdateBatch runs fn in a transaction holding an exclusive lock on the
	// batch row. Returning an error rolls back every write made through tx.
	UpdateBatch(ctx context.Context, batchID string, fn func(tx Tx, batch *models.Batch) error) error
}

// Tx is the write surface available inside UpdateBatch.
type Tx interface {
	SumBoxes(batchID, holderID string) (received, sent int64, err error)
	GetDistribution(distributionID string) (*models.Distribution, error)
	CreateDistribution(d *models.Distribution) error
	SaveDistribution(d *models.Distribution) error
	// AppendHistory inserts entry unless (batch, role, details key) exists;
	// created reports whether a row was written.
	AppendHistory(entry *models.HistoryEntry) (created bool, err error)
	ListHistory(batchID string) ([]models.HistoryEntry, error)
	CreateScan(scan *models.Scan) error
	// SumSales returns the tablets holder has sold from a batch.
	SumSales(batchID, holderID string) (int64, error)
	CreateSale(sale *models.Sale) error
	SaveBatch(batch *models.Batch) error
}
