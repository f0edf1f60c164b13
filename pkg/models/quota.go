package models

// UsageRecord tracks generations charged against one accounting week.
// WeekStart is the date-only identifier of the Monday beginning the week.
type UsageRecord struct {
	WeekStart  string `json:"week_start" redis:"week_start"`
	VideosUsed int64  `json:"videos_used" redis:"videos_used"`
}

// QuotaSnapshot is the derived per-user quota view returned to callers.
// VideosTotal is the resolved allowance for the current week: the user's
// override when one exists, the configured default otherwise.
type QuotaSnapshot struct {
	VideosUsed  int64  `json:"videos_used"`
	VideosTotal int64  `json:"videos_total"`
	WeekStart   string `json:"week_start"`
}

// Remaining returns the credits left in the current week, floored at zero.
func (q *QuotaSnapshot) Remaining() int64 {
	if q.VideosUsed >= q.VideosTotal {
		return 0
	}
	return q.VideosTotal - q.VideosUsed
}
