package exchange

import "time"

// LastDays диапазон от 00:00 UTC дня now-days до конца текущего дня
func LastDays(now time.Time, days int) (time.Time, time.Time) {
	u := now.UTC()
	from := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	_, to := DayRange(u)
	return from, to
}

// DayRange границы календарного дня UTC: [00:00:00.000, 23:59:59.999]
func DayRange(date time.Time) (time.Time, time.Time) {
	u := date.UTC()
	from := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24*time.Hour - time.Millisecond)
}

// DateRange диапазон между двумя календарными датами включительно
func DateRange(start, end time.Time) (time.Time, time.Time) {
	from, _ := DayRange(start)
	_, to := DayRange(end)
	return from, to
}
