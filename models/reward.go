package models

import "time"

// Reward event categories. EventID values are namespaced per category by the
// caller (problem slug, contest slug, and so on), so the ledger's uniqueness
// key is (user_id, event_id).
const (
	EventTypeProblem      = "problem"
	EventTypePOTD         = "potd"
	EventTypeContest      = "contest"
	EventTypeRevision     = "revision"
	EventTypeSystemDesign = "system-design"
)

// ValidEventType reports whether t is one of the recognized reward categories.
func ValidEventType(t string) bool {
	switch t {
	case EventTypeProblem, EventTypePOTD, EventTypeContest, EventTypeRevision, EventTypeSystemDesign:
		return true
	}
	return false
}

// RewardLog is the append-only ledger of granted reward events. The unique
// index on (user_id, event_id) is the concurrency control point that makes
// awards idempotent; rows are never mutated or deleted.
type RewardLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_reward_user_event,unique;not null" json:"user_id"`
	EventType string    `gorm:"size:32;index;not null" json:"event_type"`
	EventID   string    `gorm:"size:255;index:idx_reward_user_event,unique;not null" json:"event_id"`
	Coins     int64     `gorm:"not null" json:"coins"`
	CreatedAt time.Time `json:"created_at"`
}

// CoinBalance keeps one running balance row per user. Updates go through an
// atomic store-level increment, never a read-modify-write.
type CoinBalance struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	Coins     int64     `gorm:"not null;default:0" json:"coins"`
	UpdatedAt time.Time `json:"updated_at"`
}
