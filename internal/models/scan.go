package models

import "time"

type ScanEntityType string

const (
	ScanEntityBatch        ScanEntityType = "Batch"
	ScanEntityDistribution ScanEntityType = "Distribution"
)

// Scan: raw QR scan audit row, kept even when the history entry is a repeat.
type Scan struct {
	ScanID      string         `gorm:"primaryKey;size:36" json:"scanId"`
	EntityType  ScanEntityType `gorm:"size:20;not null" json:"entityType"`
	EntityID    string         `gorm:"size:64;index;not null" json:"entityId"`
	BatchID     string         `gorm:"size:64;index" json:"batchId"`
	Role        UserRole       `gorm:"size:20" json:"role"`
	ActorID     string         `gorm:"size:64" json:"actorId"`
	ActorWallet string         `gorm:"size:64" json:"actorWallet,omitempty"`
	QRPayload   RawJSON        `gorm:"type:jsonb" json:"qrPayload"`
	FirstScan   bool           `json:"firstScan"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
}
