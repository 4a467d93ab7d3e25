package streak

import "time"

// DayCell is one slot of a month grid. Cells padding the month out to full
// weeks have Date == "" and InMonth == false.
type DayCell struct {
	Date    string `json:"date,omitempty"`
	Day     int    `json:"day,omitempty"`
	InMonth bool   `json:"in_month"`
	Active  bool   `json:"active"`
	Today   bool   `json:"today"`
}

// MonthGrid is a Sunday-first weeks x 7 view of a single calendar month.
type MonthGrid struct {
	Year  int          `json:"year"`
	Month time.Month   `json:"month"`
	Weeks [][7]DayCell `json:"weeks"`
}

// BuildMonthGrid lays the given month out as full Sunday-to-Saturday weeks.
// Leading and trailing placeholder cells keep every row 7 wide; populated
// cells carry their date, whether the date is in the activity set, and
// whether it is today.
func BuildMonthGrid(dates []string, year int, month time.Month, today time.Time) (MonthGrid, error) {
	days, err := parseDaySet(dates)
	if err != nil {
		return MonthGrid{}, err
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one.
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	lead := int(first.Weekday()) // Sunday == 0

	weekCount := (lead + daysInMonth + 6) / 7
	grid := MonthGrid{Year: year, Month: month, Weeks: make([][7]DayCell, weekCount)}

	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		slot := lead + day - 1
		grid.Weeks[slot/7][slot%7] = DayCell{
			Date:    date.Format(DateLayout),
			Day:     day,
			InMonth: true,
			Active:  days[epochDay(date)],
			Today:   sameDate(date, today),
		}
	}

	return grid, nil
}
