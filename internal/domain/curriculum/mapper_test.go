package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// wellFormedModule возвращает модуль с корректной разметкой занятий:
// уроки идут парами 1,1,2,2,3,3.
func wellFormedModule() []Lesson {
	return []Lesson{
		{Title: "Введение", SessionNumber: 1},
		{Title: "Основы", SessionNumber: 1},
		{Title: "Практика 1", SessionNumber: 2},
		{Title: "Практика 2", SessionNumber: 2},
		{Title: "Закрепление", SessionNumber: 3},
		{Title: "Итоги модуля", SessionNumber: 3},
	}
}

func TestMapModule_WellFormed(t *testing.T) {
	blueprints, err := MapModule(wellFormedModule())
	require.NoError(t, err)
	require.Len(t, blueprints, SessionsPerModule)

	assert.Equal(t, SessionNumber(1), blueprints[0].SessionNumber)
	assert.Equal(t, [2]int{0, 1}, blueprints[0].LessonIndexes)
	assert.Equal(t, SessionNumber(2), blueprints[1].SessionNumber)
	assert.Equal(t, [2]int{2, 3}, blueprints[1].LessonIndexes)
	assert.Equal(t, SessionNumber(3), blueprints[2].SessionNumber)
	assert.Equal(t, [2]int{4, 5}, blueprints[2].LessonIndexes)
}

func TestMapModule_InterleavedTags(t *testing.T) {
	// Теги не обязаны идти парами подряд: важен только порядок внутри пары.
	lessons := []Lesson{
		{SessionNumber: 1},
		{SessionNumber: 2},
		{SessionNumber: 3},
		{SessionNumber: 1},
		{SessionNumber: 2},
		{SessionNumber: 3},
	}

	blueprints, err := MapModule(lessons)
	require.NoError(t, err)

	assert.Equal(t, [2]int{0, 3}, blueprints[0].LessonIndexes)
	assert.Equal(t, [2]int{1, 4}, blueprints[1].LessonIndexes)
	assert.Equal(t, [2]int{2, 5}, blueprints[2].LessonIndexes)
}

func TestMapModule_PairsDisjointAndComplete(t *testing.T) {
	blueprints, err := MapModule(wellFormedModule())
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, bp := range blueprints {
		assert.Less(t, bp.LessonIndexes[0], bp.LessonIndexes[1])
		for _, idx := range bp.LessonIndexes {
			assert.False(t, seen[idx], "lesson index %d assigned twice", idx)
			seen[idx] = true
		}
	}
	assert.Len(t, seen, LessonsPerModule, "all lesson positions must be covered")
}

func TestMapModule_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		lessons []Lesson
	}{
		{
			name:    "too few lessons",
			lessons: wellFormedModule()[:5],
		},
		{
			name:    "too many lessons",
			lessons: append(wellFormedModule(), Lesson{SessionNumber: 1}),
		},
		{
			name: "duplicate tag",
			lessons: []Lesson{
				{SessionNumber: 1}, {SessionNumber: 1}, {SessionNumber: 1},
				{SessionNumber: 2}, {SessionNumber: 3}, {SessionNumber: 3},
			},
		},
		{
			name: "missing tag",
			lessons: []Lesson{
				{SessionNumber: 1}, {SessionNumber: 1},
				{SessionNumber: 2}, {SessionNumber: 2},
				{SessionNumber: 2}, {SessionNumber: 2},
			},
		},
		{
			name: "tag out of range",
			lessons: []Lesson{
				{SessionNumber: 1}, {SessionNumber: 1},
				{SessionNumber: 2}, {SessionNumber: 2},
				{SessionNumber: 3}, {SessionNumber: 4},
			},
		},
		{
			name: "zero tag",
			lessons: []Lesson{
				{SessionNumber: 0}, {SessionNumber: 1},
				{SessionNumber: 1}, {SessionNumber: 2},
				{SessionNumber: 2}, {SessionNumber: 3},
			},
		},
		{
			name:    "empty module",
			lessons: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapModule(tt.lessons)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestMapCourse_PreservesModuleOrder(t *testing.T) {
	modules := []Module{
		{Title: "Модуль 1", Lessons: wellFormedModule()},
		{Title: "Модуль 2", Lessons: wellFormedModule()},
	}

	all, err := MapCourse(modules)
	require.NoError(t, err)
	require.Len(t, all, 2*SessionsPerModule)

	for i, mb := range all {
		assert.Equal(t, i/SessionsPerModule, mb.ModuleIndex)
		assert.Equal(t, SessionNumber(i%SessionsPerModule+1), mb.Blueprint.SessionNumber)
	}
}

func TestMapCourse_FailsOnAnyMalformedModule(t *testing.T) {
	modules := []Module{
		{Lessons: wellFormedModule()},
		{Lessons: wellFormedModule()[:4]},
	}

	_, err := MapCourse(modules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module 1")
}
