package services

import (
	"time"

	"avito-assist/internal/core/domain"
)

// IsWithinSchedule reports whether the assistant may answer at the given
// instant. Ranges are inclusive on both ends and compared as "HH:MM" strings
// in the project's local time.
func IsWithinSchedule(project *domain.Project, at time.Time) bool {
	if project.ScheduleMode == domain.ScheduleAlways {
		return true
	}

	local := at.In(project.Location())
	// time.Weekday starts at Sunday; the weekly table starts at Monday
	day := (int(local.Weekday()) + 6) % 7
	hhmm := local.Format("15:04")

	for _, r := range project.Schedule.Day(day) {
		if r.Start <= hhmm && hhmm <= r.End {
			return true
		}
	}
	return false
}
