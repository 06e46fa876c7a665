package models

import "time"

// Order records a completed checkout. Rows are append-only and written
// only by the Stripe webhook handler.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	SessionID   string `gorm:"type:text;not null"` // Stripe checkout session ID.
	Amount      int64  `gorm:"not null;default:0"` // Paid amount in cents.
	Description string `gorm:"type:text"`          // Human-readable order description.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
