package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prepdash/prepdash/models"
)

// GormRewardStore implements RewardStore on top of the MySQL tables. It
// relies on gorm.ErrDuplicatedKey translation being enabled on the DB handle.
type GormRewardStore struct {
	db *gorm.DB
}

// NewGormRewardStore wraps the given DB handle.
func NewGormRewardStore(db *gorm.DB) *GormRewardStore {
	return &GormRewardStore{db: db}
}

// Award appends the ledger row and bumps the balance in one transaction. The
// unique index on (user_id, event_id) turns a racing second insert into
// ErrDuplicateEvent. The balance bump is a single atomic upsert
// (INSERT ... ON DUPLICATE KEY UPDATE coins = coins + delta), so two
// concurrent awards for the same user on different events both land; there is
// no read-modify-write to lose an update in. A failure anywhere rolls the
// whole attempt back: a transient error cannot strand a log row without its
// coins, and the retry re-awards cleanly.
func (s *GormRewardStore) Award(ctx context.Context, event RewardEvent) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.RewardLog{
			UserID:    event.UserID,
			EventType: event.EventType,
			EventID:   event.EventID,
			Coins:     event.Coins,
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: user=%d event=%s", ErrDuplicateEvent, event.UserID, event.EventID)
			}
			return err
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"coins":      gorm.Expr("coins + ?", event.Coins),
				"updated_at": time.Now(),
			}),
		}).Create(&models.CoinBalance{UserID: event.UserID, Coins: event.Coins}).Error
		if err != nil {
			return err
		}

		var balance models.CoinBalance
		if err := tx.First(&balance, "user_id = ?", event.UserID).Error; err != nil {
			return err
		}
		total = balance.Coins
		return nil
	})
	return total, err
}

// EventIDs lists granted event ids for one user and category.
func (s *GormRewardStore) EventIDs(ctx context.Context, userID uint, eventType string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.RewardLog{}).
		Where("user_id = ? AND event_type = ?", userID, eventType).
		Pluck("event_id", &ids).Error
	return ids, err
}

// Coins returns the user's balance, treating a missing row as 0.
func (s *GormRewardStore) Coins(ctx context.Context, userID uint) (int64, error) {
	var balance models.CoinBalance
	err := s.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Coins, nil
}

// ActivityDates returns the distinct calendar days with at least one ledger
// row for the user, formatted as ISO dates.
func (s *GormRewardStore) ActivityDates(ctx context.Context, userID uint) ([]string, error) {
	var dates []string
	err := s.db.WithContext(ctx).
		Model(&models.RewardLog{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("DATE_FORMAT(created_at, '%Y-%m-%d')", &dates).Error
	return dates, err
}
