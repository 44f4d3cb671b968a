// Package schedule содержит доменную модель недельного расписания группы
// и генератор календарных дат занятий.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// RequiredDays - расписание группы всегда состоит ровно из трёх дней недели.
const RequiredDays = 3

// TimeOfDay - локальное время суток в формате "HH:MM".
type TimeOfDay string

// Parse разбирает время суток и возвращает часы и минуты.
func (t TimeOfDay) Parse() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", string(t))
	if err != nil {
		return 0, 0, shared.WrapError("schedule", "Parse", shared.ErrInvalidFormat,
			"invalid time of day", fmt.Errorf("%q: %w", t, err))
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// IsValid проверяет, что время суток разбирается.
func (t TimeOfDay) IsValid() bool {
	_, _, err := t.Parse()
	return err == nil
}

// Minutes возвращает время суток в минутах от полуночи.
// Для невалидного значения возвращает -1.
func (t TimeOfDay) Minutes() int {
	hour, minute, err := t.Parse()
	if err != nil {
		return -1
	}
	return hour*60 + minute
}

// String возвращает строковое представление.
func (t TimeOfDay) String() string {
	return string(t)
}

// ParseWeekday разбирает название дня недели ("Monday", "mon", "понедельник").
func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "monday", "mon", "понедельник":
		return time.Monday, nil
	case "tuesday", "tue", "вторник":
		return time.Tuesday, nil
	case "wednesday", "wed", "среда":
		return time.Wednesday, nil
	case "thursday", "thu", "четверг":
		return time.Thursday, nil
	case "friday", "fri", "пятница":
		return time.Friday, nil
	case "saturday", "sat", "суббота":
		return time.Saturday, nil
	case "sunday", "sun", "воскресенье":
		return time.Sunday, nil
	default:
		return 0, shared.WrapError("schedule", "Parse", shared.ErrInvalidFormat,
			"unknown weekday name", fmt.Errorf("%q", name))
	}
}

// ParseWeekdays разбирает список названий дней недели.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP SCHEDULE
// Недельное расписание группы: читается из коллаборатора Group и
// валидируется до того, как движок примет его в работу.
// ══════════════════════════════════════════════════════════════════════════════

// GroupSchedule представляет регулярное недельное расписание группы.
type GroupSchedule struct {
	// StartDate - дата первого занятия (время суток игнорируется).
	StartDate time.Time

	// DaysOfWeek - ровно 3 различных дня недели, по которым идут занятия.
	DaysOfWeek []time.Weekday

	// TimeFrom - время начала занятия.
	TimeFrom TimeOfDay

	// TimeTo - время окончания занятия.
	TimeTo TimeOfDay

	// Timezone - IANA-имя часового пояса группы (например "Asia/Almaty").
	Timezone string
}

// Validate проверяет инварианты расписания:
// ровно 3 различных дня недели, день недели StartDate входит в выбранные дни,
// времена разбираются и TimeFrom раньше TimeTo, часовой пояс известен.
func (s GroupSchedule) Validate() error {
	if s.StartDate.IsZero() {
		return shared.NewDomainError("schedule", "Validate", shared.ErrEmptyValue,
			"start date is required")
	}

	if len(s.DaysOfWeek) != RequiredDays {
		return shared.WrapError("schedule", "Validate", shared.ErrValidation,
			"group schedule is invalid",
			fmt.Errorf("expected exactly %d days of week, got %d", RequiredDays, len(s.DaysOfWeek)))
	}

	seen := make(map[time.Weekday]bool, RequiredDays)
	for _, day := range s.DaysOfWeek {
		if seen[day] {
			return shared.WrapError("schedule", "Validate", shared.ErrValidation,
				"group schedule is invalid",
				fmt.Errorf("duplicate weekday %s", day))
		}
		seen[day] = true
	}

	// Рекуррентность должна начинаться со своего собственного первого дня.
	if !seen[s.StartDate.Weekday()] {
		return shared.WrapError("schedule", "Validate", shared.ErrValidation,
			"start date weekday is not among selected days",
			fmt.Errorf("start date falls on %s", s.StartDate.Weekday()))
	}

	from, to := s.TimeFrom.Minutes(), s.TimeTo.Minutes()
	if from < 0 || to < 0 {
		return shared.WrapError("schedule", "Validate", shared.ErrInvalidFormat,
			"invalid time window",
			fmt.Errorf("time_from=%q time_to=%q", s.TimeFrom, s.TimeTo))
	}
	if from >= to {
		return shared.WrapError("schedule", "Validate", shared.ErrInvalidFormat,
			"invalid time window",
			fmt.Errorf("time_from %q must be before time_to %q", s.TimeFrom, s.TimeTo))
	}

	if _, err := s.Location(); err != nil {
		return err
	}

	return nil
}

// Location возвращает часовой пояс расписания.
// Пустой Timezone трактуется как UTC.
func (s GroupSchedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, shared.WrapError("schedule", "Validate", shared.ErrInvalidFormat,
			"unknown timezone", fmt.Errorf("%q: %w", s.Timezone, err))
	}
	return loc, nil
}

// HasDay проверяет, входит ли день недели в расписание.
func (s GroupSchedule) HasDay(day time.Weekday) bool {
	for _, d := range s.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}
