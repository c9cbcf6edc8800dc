package main

import (
	"fmt"
	"strconv"
	"strings"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
)

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func joinWeekdays(weekdays []int) string {
	fields := make([]string, 0, len(weekdays))
	for _, weekday := range weekdays {
		fields = append(fields, strconv.Itoa(weekday))
	}

	return strings.Join(fields, ",")
}

func formatSchedule(schedule *medication.Schedule) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s %s  %s", schedule.TimeOfDay, schedule.Name, schedule.Dosage, schedule.Frequency)

	if schedule.Frequency == medication.Weekly {
		names := make([]string, 0, len(schedule.ActiveWeekdays))
		for _, weekday := range schedule.Weekdays() {
			if weekday >= 0 && weekday < len(weekdayNames) {
				names = append(names, weekdayNames[weekday])
			}
		}

		fmt.Fprintf(&b, " (%s)", strings.Join(names, ","))
	}

	fmt.Fprintf(&b, "  from %s", datetime.FormatDate(schedule.StartDate))
	if schedule.EndDate != nil {
		fmt.Fprintf(&b, " to %s", datetime.FormatDate(*schedule.EndDate))
	}

	if !schedule.IsActive {
		b.WriteString("  [disabled]")
	}

	fmt.Fprintf(&b, "  %s", schedule.ID)

	return b.String()
}

func formatOccurrence(occurrence *medication.Occurrence) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s %s  [%s]",
		datetime.TimeOfDayOf(occurrence.ScheduledTime),
		occurrence.MedicationName,
		occurrence.Dosage,
		occurrence.Status,
	)

	if occurrence.ActualTime != nil {
		fmt.Fprintf(&b, " %s (%s)",
			datetime.TimeOfDayOf(*occurrence.ActualTime),
			medication.DescribeDifference(occurrence.ScheduledTime, *occurrence.ActualTime),
		)
	}

	if occurrence.Notes != "" {
		fmt.Fprintf(&b, " %q", occurrence.Notes)
	}

	fmt.Fprintf(&b, "  %s", occurrence.ID)

	return b.String()
}

func formatStatistics(stats medication.DailyStatistics) string {
	return fmt.Sprintf("%d/%d done (%.0f%%) on time %d, late %d, missed %d, skipped %d, upcoming %d",
		stats.Completed,
		stats.Total,
		stats.CompletionRate(),
		stats.OnTime,
		stats.Late,
		stats.Missed,
		stats.Skipped,
		stats.Upcoming,
	)
}

func formatColor(color medication.Color) string {
	if color == medication.ColorNone {
		return "none"
	}

	return string(color)
}
