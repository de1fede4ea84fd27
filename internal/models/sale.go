package models

import "time"

// Sale: tablets a retailer sold out of the boxes it holds.
type Sale struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   string    `gorm:"size:64;not null;index:idx_sales_holder,priority:1" json:"batchId"`
	HolderID  string    `gorm:"size:36;not null;index:idx_sales_holder,priority:2" json:"holderId"`
	Units     int64     `gorm:"not null" json:"units"`
	CreatedAt time.Time `json:"createdAt"`
}
