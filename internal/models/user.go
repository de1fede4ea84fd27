package models

import "time"

type UserRole string

const (
	RoleAdmin        UserRole = "Admin"
	RoleManufacturer UserRole = "Manufacturer"
	RoleWholesaler   UserRole = "Wholesaler"
	RoleDistributor  UserRole = "Distributor" // same tier as Wholesaler
	RoleRetailer     UserRole = "Retailer"
	RoleConsumer     UserRole = "Consumer"
)

// Tier folds role aliases onto the canonical supply-chain tier.
func (r UserRole) Tier() UserRole {
	if r == RoleDistributor {
		return RoleWholesaler
	}
	return r
}

type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	Email          string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone          string    `gorm:"size:30" json:"phone"`
	PasswordHash   string    `gorm:"size:255;not null" json:"-"`
	Role           UserRole  `gorm:"size:20;not null;index" json:"role"`
	WalletAddress  *string   `gorm:"size:64;uniqueIndex" json:"walletAddress,omitempty"`
	LicenseNumber  string    `gorm:"size:100" json:"licenseNumber"`
	CompanyAddress string    `gorm:"size:255" json:"companyAddress"`
	IsApproved     bool      `gorm:"default:false" json:"isApproved"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
