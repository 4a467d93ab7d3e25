package streak

import "time"

// HeatCell is one day of the year heatmap. Cells before the trailing-365-day
// window (alignment padding in the first column) have InRange == false.
type HeatCell struct {
	Date    string `json:"date,omitempty"`
	Active  bool   `json:"active"`
	InRange bool   `json:"in_range"`
}

// WeekColumn is a Sunday-to-Saturday column of the heatmap. MonthLabel is set
// on the column containing the first day of a month.
type WeekColumn struct {
	MonthLabel string      `json:"month_label,omitempty"`
	Days       [7]HeatCell `json:"days"`
}

// Heatmap covers the trailing 365 days ending at its End date.
type Heatmap struct {
	Start string       `json:"start"`
	End   string       `json:"end"`
	Weeks []WeekColumn `json:"weeks"`
}

// BuildYearHeatmap renders the trailing 365 days ending at today as
// Sunday-aligned week columns. The first column may start before the window
// to keep the alignment; those cells are placeholders. A month label is
// attached to each week column that contains a day-of-month 1 inside the
// window.
func BuildYearHeatmap(dates []string, today time.Time) (Heatmap, error) {
	days, err := parseDaySet(dates)
	if err != nil {
		return Heatmap{}, err
	}

	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -364)
	// Back the grid origin up to the Sunday on or before start.
	origin := start.AddDate(0, 0, -int(start.Weekday()))

	hm := Heatmap{Start: start.Format(DateLayout), End: end.Format(DateLayout)}

	for colStart := origin; !colStart.After(end); colStart = colStart.AddDate(0, 0, 7) {
		var col WeekColumn
		for i := 0; i < 7; i++ {
			date := colStart.AddDate(0, 0, i)
			if date.Before(start) || date.After(end) {
				continue
			}
			col.Days[i] = HeatCell{
				Date:    date.Format(DateLayout),
				Active:  days[epochDay(date)],
				InRange: true,
			}
			if date.Day() == 1 {
				col.MonthLabel = date.Month().String()[:3]
			}
		}
		hm.Weeks = append(hm.Weeks, col)
	}

	return hm, nil
}
