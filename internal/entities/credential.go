package entities

import "time"

// PlatformCredential stores the encrypted credential blob for a platform.
type PlatformCredential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PlatformID string `gorm:"size:50;not null;uniqueIndex" json:"platform_id"`

	// Secret is the encrypted opaque credential handed to transports.
	// Stored as base64-encoded AES-256-GCM ciphertext.
	Secret string `gorm:"type:text;not null" json:"-"`

	// TokenType is typically "Bearer" for OAuth-issued credentials.
	TokenType string `gorm:"size:50;default:Bearer" json:"token_type"`

	// ExpiresAt is when the credential expires (nullable for non-expiring ones).
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Scope contains the granted OAuth scopes, empty for non-OAuth platforms.
	Scope string `gorm:"type:text" json:"scope,omitempty"`

	// LastUsedAt tracks when the credential was last attached to a call.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func (PlatformCredential) TableName() string {
	return "platform_credentials"
}

// IsExpired checks if the credential has expired.
func (c *PlatformCredential) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	// Consider expired if less than 5 minutes remaining
	return time.Now().Add(5 * time.Minute).After(*c.ExpiresAt)
}

// DecryptedCredential holds the decrypted secret for use in memory.
// It is never stored directly in the database.
type DecryptedCredential struct {
	PlatformID string
	Secret     string
	TokenType  string
	ExpiresAt  *time.Time
	Scope      string
}

// IsExpired checks if the credential has expired.
func (c *DecryptedCredential) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	// Consider expired if less than 5 minutes remaining
	return time.Now().Add(5 * time.Minute).After(*c.ExpiresAt)
}
