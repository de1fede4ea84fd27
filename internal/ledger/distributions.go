package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medchain-backend/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type CreateDistributionInput struct {
	BatchID        string
	ReceiverID     string
	ReceiverRole   models.UserRole
	BigBoxCount    int64
	ShippingMethod string
	TrackingNumber string
	Temperature    *float64
	Humidity       *float64
	Notes          string
}

// transitions lists the allowed next states; verified and rejected are terminal.
var transitions = map[models.DistributionStatus][]models.DistributionStatus{
	models.DistributionCreated:   {models.DistributionShipped, models.DistributionDelivered, models.DistributionRejected},
	models.DistributionShipped:   {models.DistributionInTransit, models.DistributionDelivered, models.DistributionRejected},
	models.DistributionInTransit: {models.DistributionDelivered},
	models.DistributionDelivered: {models.DistributionVerified},
}

func CanTransition(from, to models.DistributionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) CreateDistribution(ctx context.Context, actor Actor, in CreateDistributionInput) (dist *models.Distribution, err error) {
	ctx, span := s.startSpan(ctx, "ledger.CreateDistribution",
		attribute.String("batch.id", in.BatchID),
		attribute.String("sender.id", actor.ID),
		attribute.Int64("big_boxes", in.BigBoxCount))
	defer func() { endSpan(span, err) }()

	senderTier := actor.Role.Tier()
	if senderTier != models.RoleManufacturer && senderTier != models.RoleWholesaler {
		return nil, ErrForbidden
	}
	receiverID, err := s.ResolveParticipant(ctx, in.ReceiverID)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid("receiver %s is not registered", in.ReceiverID)
	}
	if err != nil {
		return nil, err
	}
	in.ReceiverID = receiverID
	if err := s.validateReceiver(ctx, actor, in); err != nil {
		return nil, err
	}

	err = s.withBatch(ctx, in.BatchID, func(tx Tx, batch *models.Batch) error {
		if batch.Status == models.BatchStatusRecalled {
			return fmt.Errorf("%w: batch %s is recalled", ErrInvalidTransition, batch.BatchID)
		}

		available, err := s.availableInTx(tx, batch, actor.ID)
		if err != nil {
			return err
		}
		if in.BigBoxCount > available {
			return &InsufficientQuantityError{Requested: in.BigBoxCount, Available: available}
		}

		now := s.now().UTC()
		d := &models.Distribution{
			DistributionID: s.newID(),
			BatchID:        batch.BatchID,
			MedicineName:   batch.MedicineName,
			ManufacturerID: batch.ManufacturerID,
			SenderID:       actor.ID,
			SenderRole:     actor.Role,
			ReceiverID:     in.ReceiverID,
			ReceiverRole:   in.ReceiverRole,
			BigBoxCount:    in.BigBoxCount,
			Status:         models.DistributionCreated,
			ShippingMethod: in.ShippingMethod,
			TrackingNumber: in.TrackingNumber,
			Temperature:    in.Temperature,
			Humidity:       in.Humidity,
			Notes:          in.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		d.VerificationCode = VerificationCode(s.secret, d)
		if err := tx.CreateDistribution(d); err != nil {
			return err
		}

		if batch.Status == models.BatchStatusCreated {
			batch.Status = models.BatchStatusInDistribution
			batch.UpdatedAt = now
			if err := tx.SaveBatch(batch); err != nil {
				return err
			}
		}

		if _, err := s.recordEvent(tx, batch, actor.Role, actor.ID, map[string]any{
			"event":          "distributed",
			"distributionId": d.DistributionID,
			"bigBoxCount":    d.BigBoxCount,
			"to":             d.ReceiverID,
		}); err != nil {
			return err
		}

		dist = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"distributionId": dist.DistributionID,
		"batchId":        dist.BatchID,
		"senderId":       dist.SenderID,
		"receiverId":     dist.ReceiverID,
		"bigBoxCount":    dist.BigBoxCount,
	}).Info("distribution created")
	return dist, nil
}

// IsWalletAddress reports whether id looks like a 0x-prefixed account address.
func IsWalletAddress(id string) bool {
	if len(id) != 42 || !strings.HasPrefix(strings.ToLower(id), "0x") {
		return false
	}
	for _, r := range id[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ResolveParticipant maps a wallet address to the user id registered for
// it. Anything else, or any id when no directory is configured, is
// returned unchanged.
func (s *Service) ResolveParticipant(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if s.directory == nil || !IsWalletAddress(id) {
		return id, nil
	}
	userID, err := s.directory.ResolveWallet(ctx, strings.ToLower(id))
	if err != nil {
		return "", fmt.Errorf("resolve wallet %s: %w", id, err)
	}
	return userID, nil
}

func (s *Service) validateReceiver(ctx context.Context, actor Actor, in CreateDistributionInput) error {
	if strings.TrimSpace(in.BatchID) == "" {
		return invalid("batchId is required")
	}
	if in.BigBoxCount <= 0 {
		return invalid("bigBoxCount must be positive")
	}
	if strings.TrimSpace(in.ReceiverID) == "" {
		return invalid("receiverId is required")
	}
	if in.ReceiverID == actor.ID {
		return invalid("sender and receiver must differ")
	}
	receiverTier := in.ReceiverRole.Tier()
	if receiverTier != models.RoleWholesaler && receiverTier != models.RoleRetailer {
		return invalid("receiverRole must be Wholesaler, Distributor or Retailer")
	}

	if s.directory == nil {
		return nil
	}
	role, approved, err := s.directory.Participant(ctx, in.ReceiverID)
	if errors.Is(err, ErrNotFound) {
		return invalid("receiver %s is not registered", in.ReceiverID)
	}
	if err != nil {
		return err
	}
	if !approved {
		return invalid("receiver %s is not approved", in.ReceiverID)
	}
	if role.Tier() != receiverTier {
		return invalid("receiver %s is a %s, not a %s", in.ReceiverID, role, in.ReceiverRole)
	}
	return nil
}

func (s *Service) GetDistribution(ctx context.Context, distributionID string) (*models.Distribution, error) {
	return s.store.GetDistribution(ctx, distributionID)
}

func (s *Service) ListDistributions(ctx context.Context, f DistributionFilter) ([]models.Distribution, error) {
	return s.store.ListDistributions(ctx, f)
}

// Ship moves a created distribution to shipped. Sender only.
func (s *Service) Ship(ctx context.Context, actor Actor, distributionID string) (*models.Distribution, error) {
	return s.transition(ctx, "ledger.Ship", distributionID, func(tx Tx, batch *models.Batch, d *models.Distribution) error {
		if actor.ID != d.SenderID {
			return ErrForbidden
		}
		if err := advance(d, models.DistributionShipped); err != nil {
			return err
		}
		d.ShippedAt = timePtr(s.now().UTC())
		return nil
	})
}

// MarkInTransit moves a shipped distribution to in-transit. Sender only.
func (s *Service) MarkInTransit(ctx context.Context, actor Actor, distributionID string) (*models.Distribution, error) {
	return s.transition(ctx, "ledger.MarkInTransit", distributionID, func(tx Tx, batch *models.Batch, d *models.Distribution) error {
		if actor.ID != d.SenderID {
			return ErrForbidden
		}
		return advance(d, models.DistributionInTransit)
	})
}

// MarkReceived records delivery. Only the designated receiver may do this,
// and receiverID must name that receiver.
func (s *Service) MarkReceived(ctx context.Context, actor Actor, distributionID, receiverID string) (*models.Distribution, error) {
	return s.transition(ctx, "ledger.MarkReceived", distributionID, func(tx Tx, batch *models.Batch, d *models.Distribution) error {
		if receiverID != d.ReceiverID || actor.ID != d.ReceiverID {
			return ErrForbidden
		}
		if err := advance(d, models.DistributionDelivered); err != nil {
			return err
		}
		d.DeliveredAt = timePtr(s.now().UTC())

		_, err := s.recordEvent(tx, batch, d.ReceiverRole, d.ReceiverID, map[string]any{
			"event":          "received",
			"distributionId": d.DistributionID,
			"bigBoxCount":    d.BigBoxCount,
		})
		return err
	})
}

// Verify closes a delivered distribution when the receiver presents the
// code issued at creation.
func (s *Service) Verify(ctx context.Context, actor Actor, distributionID, code string) (*models.Distribution, error) {
	return s.transition(ctx, "ledger.Verify", distributionID, func(tx Tx, batch *models.Batch, d *models.Distribution) error {
		if actor.ID != d.ReceiverID {
			return ErrForbidden
		}
		if !CanTransition(d.Status, models.DistributionVerified) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, models.DistributionVerified)
		}
		if !codesMatch(d.VerificationCode, code) {
			return ErrVerificationFailed
		}
		d.Status = models.DistributionVerified
		d.VerifiedAt = timePtr(s.now().UTC())

		_, err := s.recordEvent(tx, batch, d.ReceiverRole, d.ReceiverID, map[string]any{
			"event":          "verified",
			"distributionId": d.DistributionID,
		})
		return err
	})
}

// Reject cancels a distribution before it is in transit. The rejected boxes
// stop counting for both parties, so the receiver must still hold all of them.
func (s *Service) Reject(ctx context.Context, actor Actor, distributionID, reason string) (*models.Distribution, error) {
	return s.transition(ctx, "ledger.Reject", distributionID, func(tx Tx, batch *models.Batch, d *models.Distribution) error {
		if actor.ID != d.SenderID && actor.ID != d.ReceiverID {
			return ErrForbidden
		}
		if !CanTransition(d.Status, models.DistributionRejected) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, models.DistributionRejected)
		}
		held, err := s.heldUnits(tx, batch, d.ReceiverID)
		if err != nil {
			return err
		}
		perBox, err := HierarchyOf(batch).UnitsPerBigBox()
		if err != nil {
			return err
		}
		if held < d.BigBoxCount*perBox {
			return fmt.Errorf("%w: receiver %s has already passed on or sold boxes of distribution %s",
				ErrInvalidTransition, d.ReceiverID, d.DistributionID)
		}
		if err := advance(d, models.DistributionRejected); err != nil {
			return err
		}
		d.RejectionReason = strings.TrimSpace(reason)
		d.RejectedAt = timePtr(s.now().UTC())
		return nil
	})
}

func (s *Service) transition(ctx context.Context, op, distributionID string, fn func(tx Tx, batch *models.Batch, d *models.Distribution) error) (dist *models.Distribution, err error) {
	ctx, span := s.startSpan(ctx, op, attribute.String("distribution.id", distributionID))
	defer func() { endSpan(span, err) }()

	current, err := s.store.GetDistribution(ctx, distributionID)
	if err != nil {
		return nil, err
	}

	err = s.withBatch(ctx, current.BatchID, func(tx Tx, batch *models.Batch) error {
		d, err := tx.GetDistribution(distributionID)
		if err != nil {
			return err
		}
		if err := fn(tx, batch, d); err != nil {
			return err
		}
		d.UpdatedAt = s.now().UTC()
		if err := tx.SaveDistribution(d); err != nil {
			return err
		}
		dist = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"distributionId": dist.DistributionID,
		"status":         dist.Status,
	}).Info(op)
	return dist, nil
}

func advance(d *models.Distribution, to models.DistributionStatus) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	return nil
}
