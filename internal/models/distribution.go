package models

import "time"

type DistributionStatus string

const (
	DistributionCreated   DistributionStatus = "created"
	DistributionShipped   DistributionStatus = "shipped"
	DistributionInTransit DistributionStatus = "in-transit"
	DistributionDelivered DistributionStatus = "delivered"
	DistributionVerified  DistributionStatus = "verified"
	DistributionRejected  DistributionStatus = "rejected"
)

// Distribution: one handoff of big boxes of a batch from sender to receiver.
type Distribution struct {
	DistributionID string `gorm:"primaryKey;size:64" json:"distributionId"`
	BatchID        string `gorm:"size:64;index;not null" json:"batchId"`
	MedicineName   string `gorm:"size:150" json:"medicineName"`
	ManufacturerID string `gorm:"size:36;index" json:"manufacturerId"`

	SenderID     string   `gorm:"size:36;index;not null" json:"senderId"`
	SenderRole   UserRole `gorm:"size:20;not null" json:"senderRole"`
	ReceiverID   string   `gorm:"size:36;index;not null" json:"receiverId"`
	ReceiverRole UserRole `gorm:"size:20;not null" json:"receiverRole"`

	BigBoxCount int64              `gorm:"not null" json:"bigBoxCount"`
	Status      DistributionStatus `gorm:"size:20;not null;default:created;index" json:"status"`

	VerificationCode string `gorm:"size:16" json:"verificationCode,omitempty"`

	ShippingMethod string   `gorm:"size:50" json:"shippingMethod,omitempty"`
	TrackingNumber string   `gorm:"size:100" json:"trackingNumber,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`

	Notes           string `gorm:"size:500" json:"notes,omitempty"`
	RejectionReason string `gorm:"size:255" json:"rejectionReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
}
