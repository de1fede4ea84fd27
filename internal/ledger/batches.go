package ledger

import (
	"context"
	"strings"
	"time"

	"medchain-backend/internal/models"
	"medchain-backend/internal/packaging"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type CreateBatchInput struct {
	MedicineName string
	Description  string
	ExpiryDate   time.Time
	TotalCartons int
	Hierarchy    packaging.Hierarchy
}

// BatchQuantities is the quantity view of a batch.
type BatchQuantities struct {
	BatchID            string              `json:"batchId"`
	Hierarchy          packaging.Hierarchy `json:"hierarchy"`
	TotalCartons       int                 `json:"totalCartons"`
	TotalBigBoxes      int64               `json:"totalBigBoxes"`
	TotalMedicineCount int64               `json:"totalMedicineCount"`
	RemainingCount     int64               `json:"remainingMedicineCount"`
	Remaining          packaging.Breakdown `json:"remaining"`
}

func HierarchyOf(b *models.Batch) packaging.Hierarchy {
	return packaging.Hierarchy{
		BoxesPerCarton:    b.BoxesPerCarton,
		SmallBoxesPerBox:  b.SmallBoxesPerBox,
		StripsPerSmallBox: b.StripsPerSmallBox,
		TabletsPerStrip:   b.TabletsPerStrip,
	}
}

func (s *Service) CreateBatch(ctx context.Context, actor Actor, in CreateBatchInput) (batch *models.Batch, err error) {
	ctx, span := s.startSpan(ctx, "ledger.CreateBatch", attribute.String("actor.id", actor.ID))
	defer func() { endSpan(span, err) }()

	if actor.Role != models.RoleManufacturer {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.MedicineName) == "" {
		return nil, invalid("medicineName is required")
	}
	if in.ExpiryDate.IsZero() {
		return nil, invalid("expiryDate is required")
	}
	if in.Hierarchy.TabletsPerStrip == 0 {
		in.Hierarchy.TabletsPerStrip = 10
	}
	total, err := in.Hierarchy.TotalUnits(in.TotalCartons)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	batch = &models.Batch{
		BatchID:                s.newID(),
		MedicineName:           strings.TrimSpace(in.MedicineName),
		Description:            in.Description,
		ManufacturerID:         actor.ID,
		ManufacturerName:       actor.Name,
		ExpiryDate:             in.ExpiryDate.UTC(),
		TotalCartons:           in.TotalCartons,
		BoxesPerCarton:         in.Hierarchy.BoxesPerCarton,
		SmallBoxesPerBox:       in.Hierarchy.SmallBoxesPerBox,
		StripsPerSmallBox:      in.Hierarchy.StripsPerSmallBox,
		TabletsPerStrip:        in.Hierarchy.TabletsPerStrip,
		TotalMedicineCount:     total,
		RemainingMedicineCount: total,
		Status:                 models.BatchStatusCreated,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	canon, key, err := canonicalDetails(map[string]any{
		"event":              "created",
		"totalCartons":       batch.TotalCartons,
		"totalMedicineCount": total,
	})
	if err != nil {
		return nil, err
	}
	batch.SupplyChainHistory = []models.HistoryEntry{{
		BatchID:        batch.BatchID,
		Step:           StepName(models.RoleManufacturer),
		Role:           models.RoleManufacturer,
		ActorID:        actor.ID,
		Details:        models.RawJSON(canon),
		DetailsKey:     key,
		FirstScannedAt: now,
	}}
	batch.BlockchainHash = s.anchorRecord(ctx, "batch", batch.BatchID, map[string]any{
		"batchId":            batch.BatchID,
		"manufacturerId":     batch.ManufacturerID,
		"medicineName":       batch.MedicineName,
		"totalMedicineCount": total,
		"expiryDate":         batch.ExpiryDate,
	})

	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"batchId": batch.BatchID, "total": total}).Info("batch created")
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	return s.store.GetBatch(ctx, batchID)
}

func (s *Service) ListBatches(ctx context.Context, f BatchFilter) ([]models.Batch, error) {
	return s.store.ListBatches(ctx, f)
}

func (s *Service) CountBatches(ctx context.Context, f BatchFilter) (int64, error) {
	return s.store.CountBatches(ctx, f)
}

func (s *Service) Quantities(ctx context.Context, batchID string) (*BatchQuantities, error) {
	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return quantitiesOf(b)
}

func quantitiesOf(b *models.Batch) (*BatchQuantities, error) {
	h := HierarchyOf(b)
	boxes, err := h.TotalBigBoxes(b.TotalCartons)
	if err != nil {
		return nil, err
	}
	remaining, err := h.Breakdown(b.RemainingMedicineCount)
	if err != nil {
		return nil, err
	}
	return &BatchQuantities{
		BatchID:            b.BatchID,
		Hierarchy:          h,
		TotalCartons:       b.TotalCartons,
		TotalBigBoxes:      boxes,
		TotalMedicineCount: b.TotalMedicineCount,
		RemainingCount:     b.RemainingMedicineCount,
		Remaining:          remaining,
	}, nil
}

// RecordSale decrements the remaining tablet count of a batch. A retailer can
// only sell tablets out of the boxes it holds.
func (s *Service) RecordSale(ctx context.Context, actor Actor, batchID string, units int64) (batch *models.Batch, err error) {
	ctx, span := s.startSpan(ctx, "ledger.RecordSale", attribute.String("batch.id", batchID), attribute.Int64("units", units))
	defer func() { endSpan(span, err) }()

	if actor.Role.Tier() != models.RoleRetailer {
		return nil, ErrForbidden
	}
	if units <= 0 {
		return nil, invalid("units must be positive")
	}

	err = s.withBatch(ctx, batchID, func(tx Tx, b *models.Batch) error {
		if b.Status == models.BatchStatusRecalled {
			return ErrInvalidTransition
		}
		held, err := s.heldUnits(tx, b, actor.ID)
		if err != nil {
			return err
		}
		sellable := min(held, b.RemainingMedicineCount)
		if units > sellable {
			return &InsufficientQuantityError{Requested: units, Available: sellable}
		}

		now := s.now().UTC()
		if err := tx.CreateSale(&models.Sale{
			BatchID:   b.BatchID,
			HolderID:  actor.ID,
			Units:     units,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		b.RemainingMedicineCount -= units
		if b.RemainingMedicineCount == 0 {
			b.Status = models.BatchStatusCompleted
		}
		b.UpdatedAt = now
		if err := tx.SaveBatch(b); err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// Recall marks a batch recalled. Only its manufacturer may recall it.
func (s *Service) Recall(ctx context.Context, actor Actor, batchID string) (batch *models.Batch, err error) {
	ctx, span := s.startSpan(ctx, "ledger.Recall", attribute.String("batch.id", batchID))
	defer func() { endSpan(span, err) }()

	err = s.withBatch(ctx, batchID, func(tx Tx, b *models.Batch) error {
		if b.ManufacturerID != actor.ID {
			return ErrForbidden
		}
		if b.Status != models.BatchStatusRecalled {
			b.Status = models.BatchStatusRecalled
			b.UpdatedAt = s.now().UTC()
			if err := tx.SaveBatch(b); err != nil {
				return err
			}
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
