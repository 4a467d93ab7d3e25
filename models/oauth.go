package models

import "time"

// OAuthState is a single-use anti-CSRF token binding an authorization request
// to the user who initiated it. Rows are deleted the moment they are read on
// the callback, whether valid or expired.
type OAuthState struct {
	State     string    `gorm:"primaryKey;size:64" json:"state"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// OAuthCredential stores provider tokens for a connected account, one row per
// user, upserted on every successful callback.
type OAuthCredential struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	ProviderMemberID string    `gorm:"size:255" json:"provider_member_id"`
	AccessToken      string    `gorm:"size:1024" json:"-"`
	RefreshToken     string    `gorm:"size:1024" json:"-"`
	Scope            string    `gorm:"size:255" json:"scope"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
