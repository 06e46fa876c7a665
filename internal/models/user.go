package models

import "time"

// AuthProvider identifies how an account was created.
const (
	// AuthProviderLocal marks accounts registered with email and password.
	AuthProviderLocal = "local"
	// AuthProviderGoogle marks accounts created through Google OAuth.
	AuthProviderGoogle = "google"
	// AuthProviderGithub marks accounts created through GitHub OAuth.
	AuthProviderGithub = "github"
)

// Role names assignable to a user.
const (
	// RoleUser is the default account role.
	RoleUser = "user"
	// RoleAdmin grants administrative access.
	RoleAdmin = "admin"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null"`             // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.
	Phone    string `gorm:"type:text"`                      // Optional phone number.

	IsVerified bool `gorm:"not null;default:false"` // Whether the email was verified.

	VerificationToken          *string    `gorm:"type:text;index"` // Pending email verification code.
	VerificationTokenExpiresAt *time.Time // Verification code expiry.

	ResetPasswordToken     *string    `gorm:"type:text;index"` // Pending password reset token.
	ResetPasswordExpiresAt *time.Time // Reset token expiry.

	Provider string `gorm:"type:text;not null;default:local"` // Account origin (local/google/github).
	Role     string `gorm:"type:text;not null;default:user"`  // Account role.

	LastLogin time.Time `gorm:"not null;autoCreateTime"` // Last successful login.

	StripeCustomerID *string `gorm:"type:text;uniqueIndex"`  // Stripe customer ID, set on first checkout.
	IsPremium        bool    `gorm:"not null;default:false"` // Premium flag, flipped by the payment webhook.

	Orders []Order `gorm:"foreignKey:UserID"` // Completed checkout records.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
