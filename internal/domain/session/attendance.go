package session

import (
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatus определяет статус посещаемости студента на занятии.
type AttendanceStatus string

const (
	// AttendancePresent - студент присутствовал.
	AttendancePresent AttendanceStatus = "present"
	// AttendanceAbsent - студент отсутствовал.
	AttendanceAbsent AttendanceStatus = "absent"
	// AttendanceLate - студент опоздал (считается присутствовавшим).
	AttendanceLate AttendanceStatus = "late"
	// AttendanceExcused - отсутствие по уважительной причине.
	AttendanceExcused AttendanceStatus = "excused"
)

// IsValid проверяет, что статус посещаемости корректен.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// CountsAsPresent возвращает true, если статус засчитывается как присутствие.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord - запись посещаемости одного студента на одном занятии.
// Среди записей занятия StudentID уникален: повторная отметка заменяет
// предыдущую.
type AttendanceRecord struct {
	// StudentID - идентификатор студента.
	StudentID string

	// Status - статус посещаемости.
	Status AttendanceStatus

	// Comment - необязательный комментарий отметившего.
	Comment string

	// MarkedBy - кто отметил посещаемость.
	MarkedBy string

	// MarkedAt - когда была сделана (или заменена) отметка.
	MarkedAt time.Time
}

// Validate проверяет корректность записи посещаемости.
func (r AttendanceRecord) Validate() error {
	if r.StudentID == "" {
		return shared.NewDomainError("attendance", "Validate", shared.ErrInvalidID,
			"student id is required")
	}
	if !r.Status.IsValid() {
		return shared.ErrInvalidAttendance
	}
	return nil
}
