// Package curriculum содержит доменную модель учебной программы курса.
// Программа читается из коллаборатора Course и используется только для чтения:
// здесь нет внешних зависимостей и нет побочных эффектов.
package curriculum

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// LessonsPerModule - каждый модуль состоит ровно из 6 уроков.
	LessonsPerModule = 6

	// SessionsPerModule - из модуля получается ровно 3 занятия.
	SessionsPerModule = 3

	// LessonsPerSession - каждое занятие покрывает ровно 2 урока.
	LessonsPerSession = 2
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// SessionNumber - номер занятия внутри модуля (1..3).
// Каждый урок несёт этот тег; пара уроков с одинаковым тегом образует занятие.
type SessionNumber int

// IsValid проверяет, что номер занятия в допустимом диапазоне.
func (n SessionNumber) IsValid() bool {
	return n >= 1 && n <= SessionsPerModule
}

// Lesson представляет один урок модуля.
type Lesson struct {
	// Title - название урока.
	Title string

	// SessionNumber - к какому занятию модуля относится урок.
	SessionNumber SessionNumber
}

// Module представляет модуль курса: упорядоченный список уроков.
type Module struct {
	// Title - название модуля.
	Title string

	// Lessons - уроки в порядке прохождения. Инвариант: ровно 6 уроков,
	// по два на каждый из номеров занятий 1..3.
	Lessons []Lesson
}

// Course представляет учебную программу: упорядоченный список модулей.
type Course struct {
	// ID - идентификатор курса (слабая ссылка, владелец - коллаборатор Course).
	ID string

	// Title - название курса.
	Title string

	// Modules - модули в порядке прохождения.
	Modules []Module
}
