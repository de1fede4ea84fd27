package ledger

import (
	"context"
	"fmt"

	"medchain-backend/internal/logging"
	"medchain-backend/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// AvailableForHolder returns the big boxes of a batch the holder can still
// send: received minus sent, or total minus sent for the batch manufacturer.
func (s *Service) AvailableForHolder(ctx context.Context, batchID, holderID string) (available int64, err error) {
	ctx, span := s.startSpan(ctx, "ledger.AvailableForHolder", attribute.String("batch.id", batchID), attribute.String("holder.id", holderID))
	defer func() { endSpan(span, err) }()

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	received, sent, err := s.store.SumBoxes(ctx, batchID, holderID)
	if err != nil {
		return 0, err
	}
	return s.available(batch, holderID, received, sent)
}

func (s *Service) availableInTx(tx Tx, batch *models.Batch, holderID string) (int64, error) {
	received, sent, err := tx.SumBoxes(batch.BatchID, holderID)
	if err != nil {
		return 0, err
	}
	return s.available(batch, holderID, received, sent)
}

func (s *Service) available(batch *models.Batch, holderID string, received, sent int64) (int64, error) {
	var available int64
	if holderID == batch.ManufacturerID {
		total, err := HierarchyOf(batch).TotalBigBoxes(batch.TotalCartons)
		if err != nil {
			return 0, err
		}
		available = total - sent
	} else {
		available = received - sent
	}

	if available < 0 {
		err := fmt.Errorf("%w: holder %s on batch %s has received %d and sent %d big boxes",
			ErrLedgerInconsistency, holderID, batch.BatchID, received, sent)
		logging.LogError(s.logger, moduleName, "available", "negative availability", map[string]any{
			"batchId":  batch.BatchID,
			"holderId": holderID,
			"received": received,
			"sent":     sent,
		}, err)
		return 0, err
	}
	return available, nil
}

// heldUnits is the tablet count a holder still has of a batch: its available
// big boxes in tablets, less what it has already sold.
func (s *Service) heldUnits(tx Tx, batch *models.Batch, holderID string) (int64, error) {
	boxes, err := s.availableInTx(tx, batch, holderID)
	if err != nil {
		return 0, err
	}
	perBox, err := HierarchyOf(batch).UnitsPerBigBox()
	if err != nil {
		return 0, err
	}
	sold, err := tx.SumSales(batch.BatchID, holderID)
	if err != nil {
		return 0, err
	}

	held := boxes*perBox - sold
	if held < 0 {
		err := fmt.Errorf("%w: holder %s on batch %s has sold %d tablets out of %d held",
			ErrLedgerInconsistency, holderID, batch.BatchID, sold, boxes*perBox)
		logging.LogError(s.logger, moduleName, "heldUnits", "sales exceed holdings", map[string]any{
			"batchId":  batch.BatchID,
			"holderId": holderID,
			"boxes":    boxes,
			"sold":     sold,
		}, err)
		return 0, err
	}
	return held, nil
}
