package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeRewardStore mimics the relational tables: a uniquely keyed ledger and
// an atomically incremented balance row per user.
type fakeRewardStore struct {
	mu       sync.Mutex
	logs     map[string]RewardEvent
	balances map[uint]int64

	failInsert error
	failAdd    error
}

func newFakeRewardStore() *fakeRewardStore {
	return &fakeRewardStore{
		logs:     map[string]RewardEvent{},
		balances: map[uint]int64{},
	}
}

func logKey(userID uint, eventID string) string {
	return fmt.Sprintf("%d|%s", userID, eventID)
}

// Award mirrors the transactional contract: a duplicate key aborts before any
// write, and a failed increment leaves neither the log row nor the balance.
func (s *fakeRewardStore) Award(_ context.Context, event RewardEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return 0, s.failInsert
	}
	key := logKey(event.UserID, event.EventID)
	if _, exists := s.logs[key]; exists {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateEvent, key)
	}
	if s.failAdd != nil {
		return 0, s.failAdd
	}
	s.logs[key] = event
	s.balances[event.UserID] += event.Coins
	return s.balances[event.UserID], nil
}

func (s *fakeRewardStore) EventIDs(_ context.Context, userID uint, eventType string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, ev := range s.logs {
		if ev.UserID == userID && ev.EventType == eventType {
			ids = append(ids, ev.EventID)
		}
	}
	return ids, nil
}

func (s *fakeRewardStore) Coins(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *fakeRewardStore) ActivityDates(_ context.Context, userID uint) ([]string, error) {
	return nil, nil
}

func validEvent() RewardEvent {
	return RewardEvent{UserID: 7, EventType: "problem", EventID: "two-sum", Coins: 10}
}

func TestAwardFirstTime(t *testing.T) {
	store := newFakeRewardStore()
	ledger := NewRewardLedger(store)

	result, err := ledger.Award(context.Background(), validEvent())
	if err != nil {
		t.Fatalf("Award returned error: %v", err)
	}
	if !result.Awarded {
		t.Error("Awarded = false, want true")
	}
	if result.TotalCoins != 10 {
		t.Errorf("TotalCoins = %d, want 10", result.TotalCoins)
	}
}

func TestAwardIdempotent(t *testing.T) {
	store := newFakeRewardStore()
	ledger := NewRewardLedger(store)
	event := validEvent()

	if _, err := ledger.Award(context.Background(), event); err != nil {
		t.Fatalf("first Award returned error: %v", err)
	}
	second, err := ledger.Award(context.Background(), event)
	if err != nil {
		t.Fatalf("second Award returned error: %v", err)
	}

	if second.Awarded {
		t.Error("second Award reported Awarded = true")
	}
	if second.TotalCoins != 0 {
		t.Errorf("second Award TotalCoins = %d, want 0", second.TotalCoins)
	}

	total, _ := ledger.UserCoins(context.Background(), event.UserID)
	if total != 10 {
		t.Errorf("balance = %d, want exactly one increment (10)", total)
	}
}

func TestAwardConcurrentSameEvent(t *testing.T) {
	store := newFakeRewardStore()
	ledger := NewRewardLedger(store)
	event := validEvent()

	const attempts = 8
	results := make([]AwardResult, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Award(context.Background(), event)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("Award %d returned error: %v", i, errs[i])
		}
		if results[i].Awarded {
			winners++
		} else if results[i].TotalCoins != 0 {
			t.Errorf("losing Award %d TotalCoins = %d, want 0", i, results[i].TotalCoins)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	total, _ := ledger.UserCoins(context.Background(), event.UserID)
	if total != 10 {
		t.Errorf("balance = %d, want 10", total)
	}
}

func TestAwardDistinctEventsAccumulate(t *testing.T) {
	store := newFakeRewardStore()
	ledger := NewRewardLedger(store)

	first := validEvent()
	second := validEvent()
	second.EventID = "add-two-numbers"
	second.Coins = 5

	if _, err := ledger.Award(context.Background(), first); err != nil {
		t.Fatalf("Award returned error: %v", err)
	}
	result, err := ledger.Award(context.Background(), second)
	if err != nil {
		t.Fatalf("Award returned error: %v", err)
	}
	if result.TotalCoins != 15 {
		t.Errorf("TotalCoins = %d, want 15", result.TotalCoins)
	}
}

func TestAwardValidation(t *testing.T) {
	ledger := NewRewardLedger(newFakeRewardStore())

	tests := []struct {
		name   string
		mutate func(*RewardEvent)
	}{
		{"missing user", func(e *RewardEvent) { e.UserID = 0 }},
		{"unknown event type", func(e *RewardEvent) { e.EventType = "daily-login" }},
		{"blank event id", func(e *RewardEvent) { e.EventID = "  " }},
		{"zero coins", func(e *RewardEvent) { e.Coins = 0 }},
		{"negative coins", func(e *RewardEvent) { e.Coins = -5 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := validEvent()
			tc.mutate(&event)
			_, err := ledger.Award(context.Background(), event)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestAwardStoreFailurePropagates(t *testing.T) {
	store := newFakeRewardStore()
	boom := errors.New("connection reset")
	store.failInsert = boom
	ledger := NewRewardLedger(store)

	_, err := ledger.Award(context.Background(), validEvent())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store failure", err)
	}

	total, _ := ledger.UserCoins(context.Background(), 7)
	if total != 0 {
		t.Errorf("balance mutated on failed insert: %d", total)
	}
}

func TestAwardBalanceFailureSurfaces(t *testing.T) {
	store := newFakeRewardStore()
	boom := errors.New("deadlock")
	store.failAdd = boom
	ledger := NewRewardLedger(store)

	_, err := ledger.Award(context.Background(), validEvent())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want balance failure surfaced", err)
	}
}

func TestAwardRetryAfterBalanceFailure(t *testing.T) {
	store := newFakeRewardStore()
	boom := errors.New("deadlock")
	store.failAdd = boom
	ledger := NewRewardLedger(store)
	event := validEvent()

	if _, err := ledger.Award(context.Background(), event); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want transient failure surfaced", err)
	}

	// The failed attempt rolled back completely: nothing logged, nothing credited.
	if total, _ := ledger.UserCoins(context.Background(), event.UserID); total != 0 {
		t.Fatalf("balance = %d after failed award, want 0", total)
	}

	// Once the store recovers, the identical event awards normally instead of
	// being swallowed as a duplicate of the failed attempt.
	store.failAdd = nil
	result, err := ledger.Award(context.Background(), event)
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if !result.Awarded {
		t.Error("retry Awarded = false, want true")
	}
	if result.TotalCoins != 10 {
		t.Errorf("retry TotalCoins = %d, want 10", result.TotalCoins)
	}
}

func TestAwardObservers(t *testing.T) {
	store := newFakeRewardStore()
	ledger := NewRewardLedger(store)

	var notified []AwardResult
	ledger.Subscribe(func(_ RewardEvent, result AwardResult) {
		notified = append(notified, result)
	})

	event := validEvent()
	if _, err := ledger.Award(context.Background(), event); err != nil {
		t.Fatalf("Award returned error: %v", err)
	}
	// Duplicate must not re-notify.
	if _, err := ledger.Award(context.Background(), event); err != nil {
		t.Fatalf("Award returned error: %v", err)
	}

	if len(notified) != 1 {
		t.Fatalf("observer called %d times, want 1", len(notified))
	}
	if notified[0].TotalCoins != 10 || !notified[0].Awarded {
		t.Errorf("observer result = %+v, want awarded total 10", notified[0])
	}
}

func TestCompletedEventIDsRejectsUnknownType(t *testing.T) {
	ledger := NewRewardLedger(newFakeRewardStore())
	_, err := ledger.CompletedEventIDs(context.Background(), 7, "bogus")
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestUserCoinsDefaultsToZero(t *testing.T) {
	ledger := NewRewardLedger(newFakeRewardStore())
	total, err := ledger.UserCoins(context.Background(), 99)
	if err != nil {
		t.Fatalf("UserCoins returned error: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}
