package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prepdash/prepdash/models"
)

var (
	// ErrStateNotFound marks a callback state that was never issued or was
	// already consumed.
	ErrStateNotFound = errors.New("oauth state not found")
	// ErrStateExpired marks a state older than its window. The row is still
	// deleted: state tokens are single-use even on failure.
	ErrStateExpired = errors.New("oauth state expired")
	// ErrNotConnected marks a user without a stored provider credential.
	ErrNotConnected = errors.New("account not connected")
)

// StateStore persists single-use anti-CSRF state tokens in the relational
// store, so the check holds across instances and restarts.
type StateStore interface {
	Save(ctx context.Context, state string, userID uint, ttl time.Duration) error
	// Consume looks the token up and deletes it in the same transaction,
	// whether it turns out valid, unknown or expired.
	Consume(ctx context.Context, state string) (userID uint, err error)
}

// CredentialStore persists provider tokens, one row per user.
type CredentialStore interface {
	Upsert(ctx context.Context, cred models.OAuthCredential) error
	ForUser(ctx context.Context, userID uint) (models.OAuthCredential, error)
}

// GormOAuthStore implements both StateStore and CredentialStore.
type GormOAuthStore struct {
	db *gorm.DB
}

// NewGormOAuthStore wraps the given DB handle.
func NewGormOAuthStore(db *gorm.DB) *GormOAuthStore {
	return &GormOAuthStore{db: db}
}

// Save records a freshly minted state token with its expiry.
func (s *GormOAuthStore) Save(ctx context.Context, state string, userID uint, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	row := models.OAuthState{
		State:     state,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Consume performs the single delete-on-read. A concurrent replay of the same
// token sees ErrStateNotFound because the first reader already deleted the row.
func (s *GormOAuthStore) Consume(ctx context.Context, state string) (uint, error) {
	var row models.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "state = ?", state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStateNotFound
			}
			return err
		}
		return tx.Delete(&models.OAuthState{}, "state = ?", state).Error
	})
	if err != nil {
		return 0, err
	}
	if time.Now().After(row.ExpiresAt) {
		return 0, ErrStateExpired
	}
	return row.UserID, nil
}

// PurgeExpiredStates removes state rows whose expiry has passed. Abandoned
// authorization attempts never reach Consume, so this is the only path that
// reclaims their rows.
func (s *GormOAuthStore) PurgeExpiredStates(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.OAuthState{})
	return res.RowsAffected, res.Error
}

// Upsert stores or refreshes the credential row keyed on user_id.
func (s *GormOAuthStore) Upsert(ctx context.Context, cred models.OAuthCredential) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_member_id", "access_token", "refresh_token", "scope", "expires_at", "updated_at",
		}),
	}).Create(&cred).Error
}

// ForUser loads the user's credential, mapping a missing row to ErrNotConnected.
func (s *GormOAuthStore) ForUser(ctx context.Context, userID uint) (models.OAuthCredential, error) {
	var cred models.OAuthCredential
	err := s.db.WithContext(ctx).First(&cred, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OAuthCredential{}, ErrNotConnected
	}
	return cred, err
}
