package quota

import "time"

// windowFormat is the canonical date-only form of a week identifier.
const windowFormat = "2006-01-02"

// WeekStart returns the identifier of the accounting week containing t: the
// Monday on or before t in t's location, normalized to midnight. Sunday
// belongs to the previous week (ISO semantics, week starts Monday).
func WeekStart(t time.Time) string {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset = 6 // Sunday
	}
	monday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, -offset)
	return monday.Format(windowFormat)
}

// CurrentWeekStart returns the identifier of the week containing now.
func CurrentWeekStart() string {
	return WeekStart(time.Now())
}
