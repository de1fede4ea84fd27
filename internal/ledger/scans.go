package ledger

import (
	"context"
	"strings"

	"medchain-backend/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultScanListLimit = 200
	publicActorID        = "public"
)

type ScanInput struct {
	BatchID        string
	DistributionID string
	Role           models.UserRole
	ActorID        string
	ActorWallet    string
	Details        any
}

type ScanResult struct {
	Scan models.Scan `json:"scan"`
	RecordResult
}

// RecordScan stores the raw scan and records the provenance event it
// implies. Authenticated callers are recorded under their own identity;
// anonymous callers are recorded as consumers.
func (s *Service) RecordScan(ctx context.Context, session *Actor, in ScanInput) (result *ScanResult, err error) {
	ctx, span := s.startSpan(ctx, "ledger.RecordScan", attribute.String("batch.id", in.BatchID), attribute.String("distribution.id", in.DistributionID))
	defer func() { endSpan(span, err) }()

	if session != nil {
		in.Role = session.Role
		in.ActorID = session.ID
	} else {
		in.Role = models.RoleConsumer
		if strings.TrimSpace(in.ActorID) == "" {
			in.ActorID = publicActorID
		}
	}

	entityType := models.ScanEntityBatch
	entityID := in.BatchID
	if in.DistributionID != "" {
		d, err := s.store.GetDistribution(ctx, in.DistributionID)
		if err != nil {
			return nil, err
		}
		if in.BatchID != "" && in.BatchID != d.BatchID {
			return nil, invalid("distribution %s does not belong to batch %s", d.DistributionID, in.BatchID)
		}
		in.BatchID = d.BatchID
		entityType = models.ScanEntityDistribution
		entityID = d.DistributionID
	}
	if strings.TrimSpace(in.BatchID) == "" {
		return nil, invalid("batchId or distributionId is required")
	}

	payload, _, err := canonicalDetails(in.Details)
	if err != nil {
		return nil, err
	}

	err = s.withBatch(ctx, in.BatchID, func(tx Tx, batch *models.Batch) error {
		rec, err := s.recordEvent(tx, batch, in.Role, in.ActorID, in.Details)
		if err != nil {
			return err
		}
		scan := models.Scan{
			ScanID:      s.newID(),
			EntityType:  entityType,
			EntityID:    entityID,
			BatchID:     batch.BatchID,
			Role:        in.Role,
			ActorID:     in.ActorID,
			ActorWallet: strings.ToLower(in.ActorWallet),
			QRPayload:   models.RawJSON(payload),
			FirstScan:   rec.Created,
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.CreateScan(&scan); err != nil {
			return err
		}
		result = &ScanResult{Scan: scan, RecordResult: *rec}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) ListScans(ctx context.Context, limit int) ([]models.Scan, error) {
	if limit <= 0 || limit > DefaultScanListLimit {
		limit = DefaultScanListLimit
	}
	return s.store.ListScans(ctx, limit)
}

// StepCounts returns how many history entries exist per step.
func (s *Service) StepCounts(ctx context.Context) (map[string]int64, error) {
	return s.store.StepCounts(ctx)
}
