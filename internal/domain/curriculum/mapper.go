package curriculum

import (
	"fmt"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM MAPPER
// Чистая функция: разбивает уроки модуля на заготовки занятий.
// Теги SessionNumber на уроках кодируют разбиение неявно, поэтому
// валидируем их строго, а не предполагаем корректный вход.
// ══════════════════════════════════════════════════════════════════════════════

// Blueprint - заготовка занятия: номер занятия и позиции двух его уроков
// внутри модуля (нулевая индексация, по возрастанию).
type Blueprint struct {
	// SessionNumber - номер занятия внутри модуля (1..3).
	SessionNumber SessionNumber

	// LessonIndexes - позиции двух уроков занятия, LessonIndexes[0] < LessonIndexes[1].
	LessonIndexes [LessonsPerSession]int
}

// ModuleBlueprint связывает заготовку занятия с индексом её модуля в курсе.
type ModuleBlueprint struct {
	// ModuleIndex - позиция модуля в курсе (нулевая индексация).
	ModuleIndex int

	// Blueprint - заготовка занятия.
	Blueprint Blueprint
}

// MapModule разбивает уроки одного модуля на заготовки занятий.
// Возвращает ровно 3 заготовки по 2 урока, упорядоченные по номеру занятия.
// Возвращает ErrInvalidCurriculumShape, если теги уроков не дают
// ровно три пары: не 6 уроков, тег вне 1..3, или тег встречается не дважды.
func MapModule(lessons []Lesson) ([]Blueprint, error) {
	if len(lessons) != LessonsPerModule {
		return nil, shared.WrapError("curriculum", "Map", shared.ErrValidation,
			"module does not resolve to exactly 3 sessions of 2 lessons",
			fmt.Errorf("expected %d lessons, got %d", LessonsPerModule, len(lessons)))
	}

	// Группируем позиции уроков по номеру занятия, сохраняя порядок модуля.
	positions := make(map[SessionNumber][]int, SessionsPerModule)
	for i, lesson := range lessons {
		if !lesson.SessionNumber.IsValid() {
			return nil, shared.WrapError("curriculum", "Map", shared.ErrValidation,
				"module does not resolve to exactly 3 sessions of 2 lessons",
				fmt.Errorf("lesson %d: session number %d out of range 1..%d",
					i, lesson.SessionNumber, SessionsPerModule))
		}
		positions[lesson.SessionNumber] = append(positions[lesson.SessionNumber], i)
	}

	blueprints := make([]Blueprint, 0, SessionsPerModule)
	for n := SessionNumber(1); n <= SessionsPerModule; n++ {
		pair := positions[n]
		if len(pair) != LessonsPerSession {
			return nil, shared.WrapError("curriculum", "Map", shared.ErrValidation,
				"module does not resolve to exactly 3 sessions of 2 lessons",
				fmt.Errorf("session number %d is tagged on %d lessons, want %d",
					n, len(pair), LessonsPerSession))
		}

		// Позиции уже по возрастанию: уроки обходились в порядке модуля.
		blueprints = append(blueprints, Blueprint{
			SessionNumber: n,
			LessonIndexes: [LessonsPerSession]int{pair[0], pair[1]},
		})
	}

	return blueprints, nil
}

// MapCourse разбивает все модули курса на заготовки занятий, сохраняя
// порядок: сначала все занятия модуля 0, затем модуля 1 и так далее.
func MapCourse(modules []Module) ([]ModuleBlueprint, error) {
	result := make([]ModuleBlueprint, 0, len(modules)*SessionsPerModule)

	for moduleIndex, module := range modules {
		blueprints, err := MapModule(module.Lessons)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", moduleIndex, err)
		}

		for _, bp := range blueprints {
			result = append(result, ModuleBlueprint{
				ModuleIndex: moduleIndex,
				Blueprint:   bp,
			})
		}
	}

	return result, nil
}
