// Package timeutil provides timezone utilities for Almaty timezone (UTC+5).
// Groups run on a single wall-clock timezone, so all schedule math and all
// human-facing date formatting goes through this package.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// AlmatyTZ is the Almaty timezone (UTC+5, no DST).
// Kazakhstan abolished DST in 2005, so this is constant year-round.
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Now returns the current time in Almaty timezone.
func Now() time.Time {
	return time.Now().In(AlmatyTZ)
}

// ToAlmaty converts a time to Almaty timezone.
func ToAlmaty(t time.Time) time.Time {
	return t.In(AlmatyTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Almaty timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, AlmatyTZ)
}

// DateTime creates a time in Almaty timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, AlmatyTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Almaty timezone.
func StartOfDay(t time.Time) time.Time {
	almaty := ToAlmaty(t)
	return time.Date(almaty.Year(), almaty.Month(), almaty.Day(), 0, 0, 0, 0, AlmatyTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in Almaty timezone.
func EndOfDay(t time.Time) time.Time {
	almaty := ToAlmaty(t)
	return time.Date(almaty.Year(), almaty.Month(), almaty.Day(), 23, 59, 59, 999999999, AlmatyTZ)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in Almaty timezone.
func StartOfWeek(t time.Time) time.Time {
	almaty := ToAlmaty(t)
	weekday := int(almaty.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(almaty.AddDate(0, 0, -daysToSubtract))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59) in Almaty timezone.
func EndOfWeek(t time.Time) time.Time {
	start := StartOfWeek(t)
	return EndOfDay(start.AddDate(0, 0, 6))
}

// IsToday checks if the given time is today in Almaty timezone.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsSameDay checks if two times are on the same day in Almaty timezone.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := ToAlmaty(t1), ToAlmaty(t2)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	duration := a2.Sub(a1)
	days := int(duration.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// IsWeekend checks if the given time is on a weekend.
func IsWeekend(t time.Time) bool {
	almaty := ToAlmaty(t)
	weekday := almaty.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
	// FormatRussianDate is the Russian date format (DD.MM.YYYY).
	FormatRussianDate = "02.01.2006"
	// FormatRussianDateTime is the Russian datetime format.
	FormatRussianDateTime = "02.01.2006 15:04"
)

// FormatAlmaty formats a time in Almaty timezone with the given layout.
func FormatAlmaty(t time.Time, layout string) string {
	return ToAlmaty(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in Almaty timezone.
func FormatDateStr(t time.Time) string {
	return FormatAlmaty(t, FormatDate)
}

// FormatTimeStr formats a time as a time string (HH:MM) in Almaty timezone.
func FormatTimeStr(t time.Time) string {
	return FormatAlmaty(t, FormatTime)
}

// FormatRussian formats a time in Russian format (DD.MM.YYYY).
func FormatRussian(t time.Time) string {
	return FormatAlmaty(t, FormatRussianDate)
}

// FormatRelative returns a human-readable relative time string.
func FormatRelative(t time.Time) string {
	now := Now()
	almaty := ToAlmaty(t)
	duration := now.Sub(almaty)

	if duration < 0 {
		duration = -duration
		return formatFutureDuration(duration)
	}

	return formatPastDuration(duration)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "только что"
	case d < time.Hour:
		mins := int(d.Minutes())
		return fmt.Sprintf("%d мин назад", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		return fmt.Sprintf("%d ч назад", hours)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "вчера"
		}
		return fmt.Sprintf("%d дн назад", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		return fmt.Sprintf("%d нед назад", weeks)
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "сейчас"
	case d < time.Hour:
		mins := int(d.Minutes())
		return fmt.Sprintf("через %d мин", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		return fmt.Sprintf("через %d ч", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "завтра"
		}
		return fmt.Sprintf("через %d дн", days)
	}
}

// ParseAlmaty parses a time string in Almaty timezone.
func ParseAlmaty(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, AlmatyTZ)
}

// ParseDateAlmaty parses a date string (YYYY-MM-DD) in Almaty timezone.
func ParseDateAlmaty(value string) (time.Time, error) {
	return ParseAlmaty(FormatDate, value)
}

// WeekdayNameRu returns the Russian name for a weekday.
func WeekdayNameRu(t time.Time) string {
	almaty := ToAlmaty(t)
	switch almaty.Weekday() {
	case time.Monday:
		return "Понедельник"
	case time.Tuesday:
		return "Вторник"
	case time.Wednesday:
		return "Среда"
	case time.Thursday:
		return "Четверг"
	case time.Friday:
		return "Пятница"
	case time.Saturday:
		return "Суббота"
	case time.Sunday:
		return "Воскресенье"
	default:
		return ""
	}
}
