package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"medchain-backend/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const (
	StepManufactured       = "manufactured"
	StepDistributed        = "distributed"
	StepReceivedByRetailer = "received-by-retailer"
	StepConsumerScan       = "consumer-scan"
	StepScanned            = "scanned"
)

// chainRoles must all appear in a batch history for the chain to be complete.
var chainRoles = []models.UserRole{models.RoleManufacturer, models.RoleWholesaler, models.RoleRetailer}

type RecordResult struct {
	Entry               models.HistoryEntry `json:"entry"`
	Created             bool                `json:"created"`
	SupplyChainComplete bool                `json:"supplyChainComplete"`
}

func StepName(role models.UserRole) string {
	switch role.Tier() {
	case models.RoleManufacturer:
		return StepManufactured
	case models.RoleWholesaler:
		return StepDistributed
	case models.RoleRetailer:
		return StepReceivedByRetailer
	case models.RoleConsumer:
		return StepConsumerScan
	default:
		return StepScanned
	}
}

// ChainComplete reports whether every chain role appears in history.
func ChainComplete(history []models.HistoryEntry) bool {
	seen := make(map[models.UserRole]bool, len(chainRoles))
	for _, e := range history {
		seen[e.Role.Tier()] = true
	}
	for _, r := range chainRoles {
		if !seen[r] {
			return false
		}
	}
	return true
}

// RecordEvent appends a provenance fact unless an entry with the same role and
// details already exists; the first scan wins.
func (s *Service) RecordEvent(ctx context.Context, batchID string, role models.UserRole, actorID string, details any) (result *RecordResult, err error) {
	ctx, span := s.startSpan(ctx, "ledger.RecordEvent", attribute.String("batch.id", batchID), attribute.String("role", string(role)))
	defer func() { endSpan(span, err) }()

	err = s.withBatch(ctx, batchID, func(tx Tx, batch *models.Batch) error {
		var txErr error
		result, txErr = s.recordEvent(tx, batch, role, actorID, details)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) recordEvent(tx Tx, batch *models.Batch, role models.UserRole, actorID string, details any) (*RecordResult, error) {
	if strings.TrimSpace(string(role)) == "" {
		return nil, invalid("role is required")
	}
	canon, key, err := canonicalDetails(details)
	if err != nil {
		return nil, err
	}

	role = role.Tier()
	entry := models.HistoryEntry{
		BatchID:        batch.BatchID,
		Step:           StepName(role),
		Role:           role,
		ActorID:        actorID,
		Details:        models.RawJSON(canon),
		DetailsKey:     key,
		FirstScannedAt: s.now().UTC(),
	}
	created, err := tx.AppendHistory(&entry)
	if err != nil {
		return nil, err
	}

	history, err := tx.ListHistory(batch.BatchID)
	if err != nil {
		return nil, err
	}
	if !created {
		for _, e := range history {
			if e.Role == role && e.DetailsKey == key {
				entry = e
				break
			}
		}
	}

	complete := ChainComplete(history)
	if complete != batch.SupplyChainComplete {
		batch.SupplyChainComplete = complete
		batch.UpdatedAt = s.now().UTC()
		if err := tx.SaveBatch(batch); err != nil {
			return nil, err
		}
	}

	return &RecordResult{Entry: entry, Created: created, SupplyChainComplete: complete}, nil
}

// canonicalDetails renders details as JSON with sorted object keys and returns
// it with its sha256 key, so equal payloads dedupe regardless of key order.
func canonicalDetails(details any) (string, string, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return "", "", invalid("details are not serializable: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", "", invalid("details are not valid JSON: %v", err)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return "", "", invalid("details are not serializable: %v", err)
	}

	sum := sha256.Sum256(canon)
	return string(canon), hex.EncodeToString(sum[:]), nil
}
