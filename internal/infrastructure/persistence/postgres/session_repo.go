package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `
	id, group_id, course_id, module_index, session_number,
	lesson_index_first, lesson_index_second, title,
	scheduled_date, start_time, end_time, timezone, status,
	meeting_link, recording_link, notes, attendance_taken,
	automation, is_deleted, deleted_at, created_at, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// Write operations
// ─────────────────────────────────────────────────────────────────────────────

// CreateBatch atomically inserts a batch of sessions. Rows whose active key
// (group, module, number) is already taken are skipped through the partial
// unique index; skipping never aborts the batch. Any other error rolls the
// whole batch back.
func (r *SessionRepository) CreateBatch(ctx context.Context, sessions []*session.Session) (*session.BatchResult, error) {
	result := &session.BatchResult{}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO sessions (` + sessionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			        $14, $15, $16, $17, $18, $19, $20, $21, $22)
			ON CONFLICT (group_id, module_index, session_number) WHERE NOT is_deleted
			DO NOTHING
		`

		for _, s := range sessions {
			automationJSON, err := json.Marshal(s.Automation)
			if err != nil {
				return fmt.Errorf("failed to marshal automation ledger: %w", err)
			}

			tag, err := tx.Exec(ctx, query,
				s.ID,
				s.GroupID,
				s.CourseID,
				s.ModuleIndex,
				int(s.SessionNumber),
				s.LessonIndexes[0],
				s.LessonIndexes[1],
				s.Title,
				s.ScheduledDate,
				string(s.StartTime),
				string(s.EndTime),
				s.Timezone,
				string(s.Status),
				s.MeetingLink,
				s.RecordingLink,
				s.Notes,
				s.AttendanceTaken,
				automationJSON,
				s.IsDeleted,
				s.DeletedAt,
				s.CreatedAt,
				s.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
			}

			if tag.RowsAffected() == 0 {
				result.Skipped++
				continue
			}
			result.Created = append(result.Created, s)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Update saves a modified session together with its attendance journal.
func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	automationJSON, err := json.Marshal(s.Automation)
	if err != nil {
		return fmt.Errorf("failed to marshal automation ledger: %w", err)
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			UPDATE sessions SET
				title = $1,
				scheduled_date = $2,
				start_time = $3,
				end_time = $4,
				status = $5,
				meeting_link = $6,
				recording_link = $7,
				notes = $8,
				attendance_taken = $9,
				automation = $10,
				is_deleted = $11,
				deleted_at = $12,
				updated_at = $13
			WHERE id = $14
		`

		tag, err := tx.Exec(ctx, query,
			s.Title,
			s.ScheduledDate,
			string(s.StartTime),
			string(s.EndTime),
			string(s.Status),
			s.MeetingLink,
			s.RecordingLink,
			s.Notes,
			s.AttendanceTaken,
			automationJSON,
			s.IsDeleted,
			s.DeletedAt,
			time.Now().UTC(),
			s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrSessionNotFound
		}

		// Attendance is an upsert per student.
		upsert := `
			INSERT INTO attendance_records (session_id, student_id, status, comment, marked_by, marked_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id, student_id) DO UPDATE SET
				status = EXCLUDED.status,
				comment = EXCLUDED.comment,
				marked_by = EXCLUDED.marked_by,
				marked_at = EXCLUDED.marked_at
		`
		for _, rec := range s.Attendance {
			if _, err := tx.Exec(ctx, upsert,
				s.ID, rec.StudentID, string(rec.Status), rec.Comment, rec.MarkedBy, rec.MarkedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert attendance for %s: %w", rec.StudentID, err)
			}
		}

		return nil
	})
}

// SoftDeleteAll tombstones every active session of the group, forcing the
// cancelled status. Returns the number of affected sessions.
func (r *SessionRepository) SoftDeleteAll(ctx context.Context, groupID string) (int, error) {
	query := `
		UPDATE sessions SET
			is_deleted = TRUE,
			deleted_at = NOW(),
			status = 'cancelled',
			updated_at = NOW()
		WHERE group_id = $1 AND NOT is_deleted
	`

	tag, err := r.conn.Exec(ctx, query, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Read operations (active sessions only)
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns an active session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 AND NOT is_deleted`

	row := r.conn.QueryRow(ctx, query, id)
	s, err := r.scanSession(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadAttendance(ctx, []*session.Session{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByGroup returns all active sessions of the group in chronological order.
func (r *SessionRepository) GetByGroup(ctx context.Context, groupID string) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1 AND NOT is_deleted
		ORDER BY scheduled_date, start_time
	`
	return r.querySessions(ctx, query, groupID)
}

// GetByDay returns active sessions of the group on the given calendar date.
func (r *SessionRepository) GetByDay(ctx context.Context, groupID string, day time.Time) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1 AND scheduled_date = $2 AND NOT is_deleted
		ORDER BY start_time
	`
	return r.querySessions(ctx, query, groupID, day.Format("2006-01-02"))
}

// GetByModule returns active sessions of one module ordered by session number.
func (r *SessionRepository) GetByModule(ctx context.Context, groupID string, moduleIndex int) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1 AND module_index = $2 AND NOT is_deleted
		ORDER BY session_number
	`
	return r.querySessions(ctx, query, groupID, moduleIndex)
}

// GetByDateRange returns active sessions within [from, to], both inclusive.
func (r *SessionRepository) GetByDateRange(ctx context.Context, groupID string, from, to time.Time) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1 AND scheduled_date BETWEEN $2 AND $3 AND NOT is_deleted
		ORDER BY scheduled_date, start_time
	`
	return r.querySessions(ctx, query, groupID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// NextUpcoming returns the nearest future scheduled session of the group,
// or nil when there is none. The day boundary depends on the group's
// timezone, so candidates from yesterday on are filtered by exact start
// instant in Go.
func (r *SessionRepository) NextUpcoming(ctx context.Context, groupID string, now time.Time) (*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1
		  AND status = 'scheduled'
		  AND scheduled_date >= $2
		  AND NOT is_deleted
		ORDER BY scheduled_date, start_time
	`

	candidates, err := r.querySessions(ctx, query, groupID, now.UTC().AddDate(0, 0, -1).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	for _, s := range candidates {
		if s.StartsAt().After(now) {
			return s, nil
		}
	}
	return nil, nil
}

// Today returns active sessions of all groups whose calendar date matches
// now in the group's timezone.
func (r *SessionRepository) Today(ctx context.Context, now time.Time) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE scheduled_date BETWEEN $1 AND $2 AND NOT is_deleted
		ORDER BY start_time
	`

	day := now.UTC()
	candidates, err := r.querySessions(ctx, query,
		day.AddDate(0, 0, -1).Format("2006-01-02"),
		day.AddDate(0, 0, 1).Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}

	var out []*session.Session
	for _, s := range candidates {
		if s.IsToday(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpcomingWithin returns active scheduled sessions of all groups starting
// in (now, now+window].
func (r *SessionRepository) UpcomingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*session.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'scheduled'
		  AND scheduled_date BETWEEN $1 AND $2
		  AND NOT is_deleted
		ORDER BY scheduled_date, start_time
	`

	from := now.UTC().AddDate(0, 0, -1)
	to := now.UTC().Add(window).AddDate(0, 0, 1)
	candidates, err := r.querySessions(ctx, query, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	var out []*session.Session
	for _, s := range candidates {
		start := s.StartsAt()
		if start.After(now) && start.Sub(now) <= window {
			out = append(out, s)
		}
	}
	return out, nil
}

// FindDuplicates returns groups of active sessions sharing one active key.
// A healthy store returns nothing; the query exists for invariant audits.
func (r *SessionRepository) FindDuplicates(ctx context.Context, groupID string) ([]session.DuplicateGroup, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE group_id = $1 AND NOT is_deleted
		  AND (module_index, session_number) IN (
			SELECT module_index, session_number
			FROM sessions
			WHERE group_id = $1 AND NOT is_deleted
			GROUP BY module_index, session_number
			HAVING COUNT(*) > 1
		  )
		ORDER BY module_index, session_number, created_at
	`

	sessions, err := r.querySessions(ctx, query, groupID)
	if err != nil {
		return nil, err
	}

	type key struct {
		module int
		number int
	}
	grouped := make(map[key]*session.DuplicateGroup)
	var order []key
	for _, s := range sessions {
		k := key{s.ModuleIndex, int(s.SessionNumber)}
		g, ok := grouped[k]
		if !ok {
			g = &session.DuplicateGroup{
				GroupID:       groupID,
				ModuleIndex:   k.module,
				SessionNumber: k.number,
			}
			grouped[k] = g
			order = append(order, k)
		}
		g.Sessions = append(g.Sessions, s)
	}

	out := make([]session.DuplicateGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out, nil
}

// Stats returns per-status counters for the group's active sessions.
func (r *SessionRepository) Stats(ctx context.Context, groupID string) (*session.GroupStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'postponed')
		FROM sessions
		WHERE group_id = $1 AND NOT is_deleted
	`

	stats := &session.GroupStats{}
	err := r.conn.QueryRow(ctx, query, groupID).Scan(
		&stats.Total,
		&stats.Scheduled,
		&stats.Completed,
		&stats.Cancelled,
		&stats.Postponed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session stats: %w", err)
	}

	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*session.Session, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	if err := r.loadAttendance(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *SessionRepository) scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s              session.Session
		sessionNumber  int
		lessonFirst    int
		lessonSecond   int
		startTime      string
		endTime        string
		status         string
		automationJSON []byte
	)

	err := row.Scan(
		&s.ID,
		&s.GroupID,
		&s.CourseID,
		&s.ModuleIndex,
		&sessionNumber,
		&lessonFirst,
		&lessonSecond,
		&s.Title,
		&s.ScheduledDate,
		&startTime,
		&endTime,
		&s.Timezone,
		&status,
		&s.MeetingLink,
		&s.RecordingLink,
		&s.Notes,
		&s.AttendanceTaken,
		&automationJSON,
		&s.IsDeleted,
		&s.DeletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.SessionNumber = curriculum.SessionNumber(sessionNumber)
	s.LessonIndexes = [2]int{lessonFirst, lessonSecond}
	s.StartTime = schedule.TimeOfDay(startTime)
	s.EndTime = schedule.TimeOfDay(endTime)
	s.Status = session.Status(status)

	s.Automation = session.NewAutomationEvents()
	if len(automationJSON) > 0 {
		if err := json.Unmarshal(automationJSON, &s.Automation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal automation ledger: %w", err)
		}
		if s.Automation.Events == nil {
			s.Automation = session.NewAutomationEvents()
		}
	}

	return &s, nil
}

// loadAttendance fills the attendance journal for the given sessions with
// one query.
func (r *SessionRepository) loadAttendance(ctx context.Context, sessions []*session.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	ids := make([]string, len(sessions))
	byID := make(map[string]*session.Session, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	query := `
		SELECT session_id, student_id, status, comment, marked_by, marked_at
		FROM attendance_records
		WHERE session_id = ANY($1)
		ORDER BY marked_at
	`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID string
			rec       session.AttendanceRecord
			status    string
		)
		if err := rows.Scan(&sessionID, &rec.StudentID, &status, &rec.Comment, &rec.MarkedBy, &rec.MarkedAt); err != nil {
			return fmt.Errorf("failed to scan attendance record: %w", err)
		}
		rec.Status = session.AttendanceStatus(status)

		if s, ok := byID[sessionID]; ok {
			s.Attendance = append(s.Attendance, rec)
		}
	}

	return rows.Err()
}
