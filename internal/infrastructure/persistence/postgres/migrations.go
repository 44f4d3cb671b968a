package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create sessions table
-- Version: 001

CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    group_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    module_index INTEGER NOT NULL,
    session_number INTEGER NOT NULL,
    lesson_index_first INTEGER NOT NULL,
    lesson_index_second INTEGER NOT NULL,
    title VARCHAR(300) NOT NULL DEFAULT '',
    scheduled_date DATE NOT NULL,
    start_time CHAR(5) NOT NULL,
    end_time CHAR(5) NOT NULL,
    timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Almaty',
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    meeting_link TEXT NOT NULL DEFAULT '',
    recording_link TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    attendance_taken BOOLEAN NOT NULL DEFAULT FALSE,

    -- Automation ledger: sent flags, timestamps and delivery counters
    -- per notification type.
    automation JSONB NOT NULL DEFAULT '{"events": {}}'::jsonb,

    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('scheduled', 'completed', 'cancelled', 'postponed')),
    CONSTRAINT valid_module_index CHECK (module_index >= 0),
    CONSTRAINT valid_session_number CHECK (session_number BETWEEN 1 AND 3),
    CONSTRAINT valid_lesson_pair CHECK (lesson_index_first < lesson_index_second)
);

-- Uniqueness of active sessions: one (group, module, number) among
-- non-deleted rows. Tombstones do not occupy the key.
CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_active_key
    ON sessions(group_id, module_index, session_number)
    WHERE NOT is_deleted;

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_sessions_group_date ON sessions(group_id, scheduled_date) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_sessions_group_module ON sessions(group_id, module_index, session_number) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_sessions_date_status ON sessions(scheduled_date, status) WHERE NOT is_deleted;
`

const migration001Down = `
DROP TABLE IF EXISTS sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ATTENDANCE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create attendance records table
-- Version: 002

CREATE TABLE IF NOT EXISTS attendance_records (
    id SERIAL PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    student_id VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    marked_by VARCHAR(64) NOT NULL,
    marked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_attendance_status CHECK (status IN ('present', 'absent', 'late', 'excused')),

    -- One record per student per session; re-marking replaces in place.
    UNIQUE(session_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_session_id ON attendance_records(session_id);
CREATE INDEX IF NOT EXISTS idx_attendance_student_id ON attendance_records(student_id);
`

const migration002Down = `
DROP TABLE IF EXISTS attendance_records;
`
