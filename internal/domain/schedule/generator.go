package schedule

import (
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE GENERATOR
// Чистая функция: раскладывает заготовки занятий по календарным датам.
// Детерминирована для одинакового входа - это ключевое свойство для
// идемпотентной регенерации расписания группы.
// ══════════════════════════════════════════════════════════════════════════════

// PlannedSession - запланированное занятие: заготовка плюс календарная дата
// и временное окно. Это вход для SessionRegistry.CreateBatch.
type PlannedSession struct {
	// ModuleIndex - позиция модуля в курсе.
	ModuleIndex int

	// SessionNumber - номер занятия внутри модуля (1..3).
	SessionNumber curriculum.SessionNumber

	// LessonIndexes - позиции двух уроков занятия внутри модуля.
	LessonIndexes [curriculum.LessonsPerSession]int

	// Date - календарная дата занятия (полночь в поясе расписания).
	Date time.Time

	// StartTime - время начала (копия TimeFrom расписания).
	StartTime TimeOfDay

	// EndTime - время окончания (копия TimeTo расписания).
	EndTime TimeOfDay
}

// Generate раскладывает заготовки занятий по датам.
//
// Алгоритм: идём вперёд день за днём начиная со StartDate; каждая дата,
// чей день недели входит в DaysOfWeek, получает следующую неназначенную
// заготовку. Дни потребляются в порядке их появления в календаре, а не в
// порядке перечисления в DaysOfWeek. Так на каждый подходящий календарный
// день приходится ровно одно занятие, и порядок программы сохраняется.
//
// Возвращает ErrInvalidSchedule (завёрнутый) при некорректном расписании
// и ErrNothingToSchedule при пустом списке заготовок.
func Generate(blueprints []curriculum.ModuleBlueprint, sched GroupSchedule) ([]PlannedSession, error) {
	if err := sched.Validate(); err != nil {
		return nil, err
	}

	if len(blueprints) == 0 {
		return nil, shared.ErrNothingToSchedule
	}

	loc, err := sched.Location()
	if err != nil {
		return nil, err
	}

	// Нормализуем старт до полуночи в поясе расписания.
	start := sched.StartDate.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	planned := make([]PlannedSession, 0, len(blueprints))
	for _, mb := range blueprints {
		for !sched.HasDay(day.Weekday()) {
			day = day.AddDate(0, 0, 1)
		}

		planned = append(planned, PlannedSession{
			ModuleIndex:   mb.ModuleIndex,
			SessionNumber: mb.Blueprint.SessionNumber,
			LessonIndexes: mb.Blueprint.LessonIndexes,
			Date:          day,
			StartTime:     sched.TimeFrom,
			EndTime:       sched.TimeTo,
		})

		day = day.AddDate(0, 0, 1)
	}

	return planned, nil
}

// StartsAt возвращает момент начала запланированного занятия в поясе loc.
func (p PlannedSession) StartsAt(loc *time.Location) time.Time {
	hour, minute, err := p.StartTime.Parse()
	if err != nil {
		return p.Date
	}
	d := p.Date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}
