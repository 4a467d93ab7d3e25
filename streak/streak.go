// Package streak turns a set of activity dates into streak counts and
// calendar/heatmap grids. Everything here is a pure computation over the
// supplied dates and reference day, so callers can recompute on demand and
// tests can pin "today" to any value.
package streak

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the canonical wire format for activity dates.
const DateLayout = "2006-01-02"

// ParseError reports a malformed activity date. Grids are never built from
// partially parsed input.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid activity date %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// State holds the derived streak counters. LongestStreak >= CurrentStreak
// always holds; both are zero for an empty date set.
type State struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// ComputeStreaks walks the date set relative to today.
//
// Convention: the current streak tolerates a one-day grace period. When today
// has no activity yet, counting starts at yesterday, so a streak is still
// "alive" until a full calendar day is missed. If neither today nor yesterday
// is active the current streak is 0. The longest streak is the maximum run of
// consecutive calendar days anywhere in the set, independent of today.
func ComputeStreaks(dates []string, today time.Time) (State, error) {
	days, err := parseDaySet(dates)
	if err != nil {
		return State{}, err
	}
	if len(days) == 0 {
		return State{}, nil
	}

	cursor := epochDay(today)
	if !days[cursor] {
		cursor--
	}
	current := 0
	for days[cursor] {
		current++
		cursor--
	}

	longest := longestRun(days)
	if longest < current {
		// Cannot happen for a well-formed set; keep the invariant anyway.
		longest = current
	}

	return State{CurrentStreak: current, LongestStreak: longest}, nil
}

// longestRun finds the maximum count of consecutive day numbers in the set.
func longestRun(days map[int64]bool) int {
	sorted := make([]int64, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	longest, run := 0, 0
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// parseDaySet collapses the input into a set of epoch day numbers. Duplicates
// are allowed and collapse; any malformed entry aborts with a ParseError.
func parseDaySet(dates []string) (map[int64]bool, error) {
	days := make(map[int64]bool, len(dates))
	for _, raw := range dates {
		t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
		if err != nil {
			return nil, &ParseError{Input: raw, Err: err}
		}
		days[epochDay(t)] = true
	}
	return days, nil
}

// epochDay numbers calendar days so consecutive dates differ by exactly one,
// regardless of the wall-clock time or zone carried by t.
func epochDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// sameDate reports whether a and b fall on the same calendar day.
func sameDate(a, b time.Time) bool {
	return epochDay(a) == epochDay(b)
}
