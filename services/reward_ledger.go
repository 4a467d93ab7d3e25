package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prepdash/prepdash/models"
)

var (
	// ErrDuplicateEvent marks a ledger insert that lost to an earlier award
	// for the same (user, event) pair. Callers treat it as a no-op success.
	ErrDuplicateEvent = errors.New("reward event already awarded")
	// ErrInvalidEvent marks an event that fails validation before any store access.
	ErrInvalidEvent = errors.New("invalid reward event")
)

// RewardEvent is one qualifying user action worth coins.
type RewardEvent struct {
	UserID    uint   `json:"user_id"`
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Coins     int64  `json:"coins"`
}

// Validate checks the event shape without touching the store.
func (e RewardEvent) Validate() error {
	if e.UserID == 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if !models.ValidEventType(e.EventType) {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.EventType)
	}
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	if e.Coins <= 0 {
		return fmt.Errorf("%w: coins must be positive", ErrInvalidEvent)
	}
	return nil
}

// AwardResult is what an award attempt produced. Awarded is false when the
// event had already been granted; TotalCoins is then 0 and the caller must
// not re-notify.
type AwardResult struct {
	Awarded    bool  `json:"awarded"`
	Coins      int64 `json:"coins"`
	TotalCoins int64 `json:"total_coins"`
}

// RewardStore is the slice of the external store the ledger needs. Award must
// run the ledger insert and the balance increment in a single transaction:
// a unique-constraint violation on (user, event) comes back as
// ErrDuplicateEvent, and any other failure rolls the log row back so a retry
// can still credit the coins. The increment itself must be atomic at the
// store level so concurrent awards for the same user never lose an update.
type RewardStore interface {
	Award(ctx context.Context, event RewardEvent) (total int64, err error)
	EventIDs(ctx context.Context, userID uint, eventType string) ([]string, error)
	Coins(ctx context.Context, userID uint) (int64, error)
	ActivityDates(ctx context.Context, userID uint) ([]string, error)
}

// AwardObserver receives first-time awards, e.g. to drive a coin animation.
// Observers are never called for duplicate attempts.
type AwardObserver func(event RewardEvent, result AwardResult)

// RewardLedger grants coins for qualifying events at most once per
// (user, event) pair and keeps the running balance consistent with the sum
// of granted events.
type RewardLedger struct {
	store RewardStore

	mu        sync.RWMutex
	observers []AwardObserver
}

// NewRewardLedger creates a ledger over the given store.
func NewRewardLedger(store RewardStore) *RewardLedger {
	return &RewardLedger{store: store}
}

// Subscribe registers an observer for first-time awards. Result delivery is
// explicit message passing: the ledger returns the result to its caller and
// additionally forwards it to subscribers, there is no ambient event bus.
func (l *RewardLedger) Subscribe(fn AwardObserver) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// Award grants the event's coins exactly once.
//
// The ledger insert's unique constraint is the only concurrency control:
// whichever attempt inserts first wins, every other attempt (double click,
// second tab, retried request) sees ErrDuplicateEvent and resolves to
// {Awarded: false, TotalCoins: 0} with no balance mutation. Insert and
// balance increment commit together, so a transient store failure leaves no
// stranded log row and a retry of the same event still credits the coins.
func (l *RewardLedger) Award(ctx context.Context, event RewardEvent) (AwardResult, error) {
	if err := event.Validate(); err != nil {
		return AwardResult{}, err
	}

	total, err := l.store.Award(ctx, event)
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return AwardResult{Awarded: false, TotalCoins: 0}, nil
		}
		return AwardResult{}, err
	}

	result := AwardResult{Awarded: true, Coins: event.Coins, TotalCoins: total}
	l.notify(event, result)
	return result, nil
}

// CompletedEventIDs lists the event ids already granted to the user in the
// given category, so the UI can stop offering the award action for them.
func (l *RewardLedger) CompletedEventIDs(ctx context.Context, userID uint, eventType string) ([]string, error) {
	if !models.ValidEventType(eventType) {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, eventType)
	}
	return l.store.EventIDs(ctx, userID, eventType)
}

// UserCoins returns the current balance; a user with no balance row has 0.
func (l *RewardLedger) UserCoins(ctx context.Context, userID uint) (int64, error) {
	return l.store.Coins(ctx, userID)
}

// ActivityDates returns the distinct calendar days on which the user earned
// any reward, as ISO dates. This is the input set of the streak engine.
func (l *RewardLedger) ActivityDates(ctx context.Context, userID uint) ([]string, error) {
	return l.store.ActivityDates(ctx, userID)
}

func (l *RewardLedger) notify(event RewardEvent, result AwardResult) {
	l.mu.RLock()
	observers := l.observers
	l.mu.RUnlock()
	for _, fn := range observers {
		fn(event, result)
	}
}
