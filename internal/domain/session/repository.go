package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// Все методы чтения по умолчанию работают с активными (неудалёнными)
// занятиями. Доступ к удалённым - только через явные методы аудита.
// ══════════════════════════════════════════════════════════════════════════════

// BatchResult - результат пакетного создания занятий.
type BatchResult struct {
	// Created - занятия, реально записанные в хранилище.
	Created []*Session

	// Skipped - количество занятий, пропущенных как дубликаты
	// по (group, module, session number).
	Skipped int
}

// DuplicateGroup - группа активных занятий, разделяющих один ключ
// (group, module, session number). В корректном хранилище таких групп
// быть не должно; запрос существует для аудита.
type DuplicateGroup struct {
	GroupID       string
	ModuleIndex   int
	SessionNumber int
	Sessions      []*Session
}

// GroupStats - сводка по занятиям группы.
type GroupStats struct {
	Total     int
	Scheduled int
	Completed int
	Cancelled int
	Postponed int
}

// CompletionRatio возвращает долю проведённых занятий от общего количества.
func (s GroupStats) CompletionRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Repository определяет контракт хранилища занятий.
type Repository interface {
	// CreateBatch атомарно записывает пакет занятий, пропуская дубликаты
	// по активному ключу (group, module, session number). Частичных
	// пакетов не бывает: при любой другой ошибке не записывается ничего.
	CreateBatch(ctx context.Context, sessions []*Session) (*BatchResult, error)

	// Update сохраняет изменённое занятие.
	Update(ctx context.Context, session *Session) error

	// SoftDeleteAll помечает удалёнными все активные занятия группы.
	// Возвращает количество затронутых занятий.
	SoftDeleteAll(ctx context.Context, groupID string) (int, error)

	// GetByID возвращает активное занятие по идентификатору.
	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByGroup возвращает все активные занятия группы,
	// отсортированные по дате и времени начала.
	GetByGroup(ctx context.Context, groupID string) ([]*Session, error)

	// GetByDay возвращает активные занятия группы на календарную дату.
	GetByDay(ctx context.Context, groupID string, day time.Time) ([]*Session, error)

	// GetByModule возвращает активные занятия группы по модулю,
	// отсортированные по номеру занятия.
	GetByModule(ctx context.Context, groupID string, moduleIndex int) ([]*Session, error)

	// GetByDateRange возвращает активные занятия группы в диапазоне дат
	// (обе границы включительно).
	GetByDateRange(ctx context.Context, groupID string, from, to time.Time) ([]*Session, error)

	// NextUpcoming возвращает ближайшее будущее занятие группы
	// в статусе scheduled или nil, если такого нет.
	NextUpcoming(ctx context.Context, groupID string, now time.Time) (*Session, error)

	// Today возвращает активные занятия всех групп на сегодня.
	// Используется планировщиком напоминаний.
	Today(ctx context.Context, now time.Time) ([]*Session, error)

	// UpcomingWithin возвращает активные scheduled-занятия всех групп,
	// начинающиеся в интервале (now, now+window].
	UpcomingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*Session, error)

	// FindDuplicates возвращает группы активных занятий с одинаковым ключом.
	FindDuplicates(ctx context.Context, groupID string) ([]DuplicateGroup, error)

	// Stats возвращает сводку по активным занятиям группы.
	Stats(ctx context.Context, groupID string) (*GroupStats, error)
}

// Cache определяет контракт кэша дневных выборок занятий.
type Cache interface {
	// GetDay возвращает закэшированные занятия группы на дату
	// или (nil, nil) при промахе.
	GetDay(ctx context.Context, groupID string, day time.Time) ([]*Session, error)

	// SetDay кэширует занятия группы на дату.
	SetDay(ctx context.Context, groupID string, day time.Time, sessions []*Session) error

	// InvalidateGroup сбрасывает все дневные выборки группы.
	InvalidateGroup(ctx context.Context, groupID string) error
}
