package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message sender values.
const (
	// SenderUser marks a message authored by the account owner.
	SenderUser = "user"
	// SenderBot marks a message authored by the assistant.
	SenderBot = "bot"
)

// DefaultChatTitle is assigned to instances until a title is derived.
const DefaultChatTitle = "New chat"

// ChatInstance is a persisted conversation thread owned by one user.
type ChatInstance struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Title string `gorm:"type:text;not null;default:''"` // Conversation title.

	Messages []ChatMessage `gorm:"foreignKey:ChatInstanceID;constraint:OnDelete:CASCADE"` // Ordered messages.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ChatMessage is a single turn inside a chat instance. Messages are
// append-only; insertion order is the conversation order.
type ChatMessage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatInstanceID uint64 `gorm:"not null;index"` // Parent instance ID.

	Sender string         `gorm:"type:text;not null"` // Message sender (user/bot).
	Text   string         `gorm:"type:text;not null"` // Message body.
	Meta   datatypes.JSON // Free-form metadata.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
