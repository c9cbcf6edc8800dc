package medication

import (
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
)

// DailyStatistics counts the statuses of one day's occurrences
type DailyStatistics struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	OnTime    int `json:"on_time"`
	Late      int `json:"late"`
	Missed    int `json:"missed"`
	Skipped   int `json:"skipped"`
	Upcoming  int `json:"upcoming"`
}

// CompletionRate is the completed percentage, 0 for an empty day
func (s DailyStatistics) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}

	return float64(s.Completed) / float64(s.Total) * 100
}

// Summarize occurrences into daily statistics
func Summarize(occurrences []*Occurrence) DailyStatistics {
	stats := DailyStatistics{Total: len(occurrences)}
	for _, occurrence := range occurrences {
		switch occurrence.Status {
		case Upcoming:
			stats.Upcoming++
		case OnTime:
			stats.OnTime++
		case Late:
			stats.Late++
		case Missed:
			stats.Missed++
		case Skipped:
			stats.Skipped++
		}
	}

	stats.Completed = stats.OnTime + stats.Late

	return stats
}

// Color of a calendar day
type Color string

const (
	// ColorNone marks a day without occurrences
	ColorNone Color = ""
	// ColorGreen marks a day with every dose on time
	ColorGreen Color = "green"
	// ColorYellow marks a day with every dose taken, some late
	ColorYellow Color = "yellow"
	// ColorOrange marks a day with some doses taken
	ColorOrange Color = "orange"
	// ColorRed marks a day with no dose taken
	ColorRed Color = "red"
)

// DayColor picks the calendar color for a day. First match wins: empty days
// have no color, all on time is green, all completed with some late is
// yellow, partially completed is orange, nothing completed is red.
func DayColor(stats DailyStatistics) Color {
	switch {
	case stats.Total == 0:
		return ColorNone
	case stats.OnTime == stats.Total:
		return ColorGreen
	case stats.Completed == stats.Total:
		return ColorYellow
	case stats.Completed > 0:
		return ColorOrange
	default:
		return ColorRed
	}
}

// MonthStatistics maps YYYY-MM-DD to that day's statistics
type MonthStatistics map[string]DailyStatistics

// SummarizeMonth groups occurrences by calendar date and summarizes each day
func SummarizeMonth(occurrences []*Occurrence) MonthStatistics {
	grouped := make(map[string][]*Occurrence)
	for _, occurrence := range occurrences {
		key := datetime.FormatDate(occurrence.Date)
		grouped[key] = append(grouped[key], occurrence)
	}

	month := make(MonthStatistics, len(grouped))
	for key, day := range grouped {
		month[key] = Summarize(day)
	}

	return month
}

// For returns the statistics recorded for date
func (m MonthStatistics) For(date time.Time) (DailyStatistics, bool) {
	stats, ok := m[datetime.FormatDate(date)]
	return stats, ok
}

// Color of date, ColorNone when nothing was recorded
func (m MonthStatistics) Color(date time.Time) Color {
	stats, ok := m.For(date)
	if !ok {
		return ColorNone
	}

	return DayColor(stats)
}
