package model

import "time"

// DayLayout is the format of Activity.Day ("2006-01-02").
const DayLayout = time.DateOnly

// ActivityKind selects which daily counter an event increments.
type ActivityKind int

const (
	ActivitySnippet ActivityKind = iota // a new snippet was created
	ActivityFork                        // a snippet was forked
)

// Activity is one user's contribution totals for a single calendar day.
// There is at most one row per (UserID, Day) and its counts only grow.
type Activity struct {
	UserID       string `json:"userId"`
	Day          string `json:"date"`
	SnippetCount int    `json:"snippetCount"`
	ForkCount    int    `json:"forkCount"`
}

// Total is the value plotted on the contribution heatmap.
func (a Activity) Total() int {
	return a.SnippetCount + a.ForkCount
}

// Today returns the activity day for t in t's location.
func Today(t time.Time) string {
	return t.Format(DayLayout)
}

// Streak counts consecutive active days ending today or yesterday.
// activeDays must be YYYY-MM-DD strings sorted newest first; days after today
// are ignored. A streak that last saw activity two or more days ago is 0.
func Streak(activeDays []string, now time.Time) int {
	today := now.Format(DayLayout)
	expected := today
	streak := 0
	for _, day := range activeDays {
		if day > today {
			continue
		}
		if streak == 0 && day != today {
			// No activity today yet: a streak may still end yesterday.
			yesterday := now.AddDate(0, 0, -1).Format(DayLayout)
			if day != yesterday {
				return 0
			}
			expected = yesterday
		}
		if day != expected {
			break
		}
		streak++
		t, err := time.Parse(DayLayout, expected)
		if err != nil {
			break
		}
		expected = t.AddDate(0, 0, -1).Format(DayLayout)
	}
	return streak
}
