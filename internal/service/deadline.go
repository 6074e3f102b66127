package service

import "time"

// CalculateDeadline returns noon of the day before weekStart, in weekStart's location.
func CalculateDeadline(weekStart time.Time) time.Time {
	year, month, day := weekStart.Date()
	return time.Date(year, month, day-1, 12, 0, 0, 0, weekStart.Location())
}
