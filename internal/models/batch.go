package models

import "time"

type BatchStatus string

const (
	BatchStatusCreated        BatchStatus = "created"
	BatchStatusInDistribution BatchStatus = "in-distribution"
	BatchStatusCompleted      BatchStatus = "completed"
	BatchStatusRecalled       BatchStatus = "recalled"
)

// Batch: one manufactured production run. Totals are fixed at creation.
type Batch struct {
	BatchID          string    `gorm:"primaryKey;size:64" json:"batchId"`
	MedicineName     string    `gorm:"size:150;not null" json:"medicineName"`
	Description      string    `gorm:"size:500" json:"description"`
	ManufacturerID   string    `gorm:"size:36;index;not null" json:"manufacturerId"`
	ManufacturerName string    `gorm:"size:100" json:"manufacturerName"`
	ExpiryDate       time.Time `gorm:"not null" json:"expiryDate"`

	// packaging hierarchy, largest level first
	TotalCartons      int `gorm:"not null" json:"totalCartons"`
	BoxesPerCarton    int `gorm:"not null" json:"boxesPerCarton"`
	SmallBoxesPerBox  int `gorm:"not null" json:"smallBoxesPerBox"`
	StripsPerSmallBox int `gorm:"not null" json:"stripsPerSmallBox"`
	TabletsPerStrip   int `gorm:"not null;default:10" json:"tabletsPerStrip"`

	TotalMedicineCount     int64 `gorm:"not null" json:"totalMedicineCount"`
	RemainingMedicineCount int64 `gorm:"not null" json:"remainingMedicineCount"`

	Status              BatchStatus `gorm:"size:20;not null;default:created" json:"status"`
	SupplyChainComplete bool        `gorm:"default:false" json:"supplyChainComplete"`
	BlockchainHash      string      `gorm:"size:100" json:"blockchainHash,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SupplyChainHistory []HistoryEntry `gorm:"foreignKey:BatchID;references:BatchID;constraint:OnDelete:CASCADE" json:"supplyChainHistory"`
}

// HistoryEntry: first-scan provenance fact. (batch, role, details) is unique.
type HistoryEntry struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	BatchID        string    `gorm:"size:64;not null;uniqueIndex:idx_history_first_scan,priority:1" json:"batchId"`
	Step           string    `gorm:"size:50;not null" json:"step"`
	Role           UserRole  `gorm:"size:20;not null;uniqueIndex:idx_history_first_scan,priority:2" json:"role"`
	ActorID        string    `gorm:"size:64" json:"actorId"`
	Details        RawJSON   `gorm:"type:jsonb" json:"details"`
	DetailsKey     string    `gorm:"size:64;not null;uniqueIndex:idx_history_first_scan,priority:3" json:"-"`
	FirstScannedAt time.Time `gorm:"not null" json:"firstScannedAt"`
}

// RawJSON is stored as jsonb and rendered inline in API responses.
type RawJSON string

func (j RawJSON) MarshalJSON() ([]byte, error) {
	if j == "" {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *RawJSON) UnmarshalJSON(b []byte) error {
	*j = RawJSON(b)
	return nil
}
