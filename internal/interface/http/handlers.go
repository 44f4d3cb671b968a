// Package http implements the REST API of the session engine.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/application/query"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
	"github.com/bilim-crm/bilim-session-engine/pkg/logger"
)

const dateLayout = "2006-01-02"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Bilim Session Engine API",
		"version":     "v1",
		"description": "REST API for course session scheduling and lifecycle management",
		"endpoints": map[string]string{
			"health":   "/health",
			"schedule": "/api/v1/groups/{id}/schedule",
			"today":    "/api/v1/sessions/today",
			"session":  "/api/v1/sessions/{id}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE MANAGEMENT HANDLERS (write side)
// ══════════════════════════════════════════════════════════════════════════════

// generateSessionsRequest is the payload for generate and regenerate.
type generateSessionsRequest struct {
	CourseID    string          `json:"course_id"`
	MeetingLink string          `json:"meeting_link,omitempty"`
	Modules     []moduleRequest `json:"modules"`
	Schedule    scheduleRequest `json:"schedule"`
}

type moduleRequest struct {
	Title   string          `json:"title"`
	Lessons []lessonRequest `json:"lessons"`
}

type lessonRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type scheduleRequest struct {
	StartDate  string   `json:"start_date"`
	DaysOfWeek []string `json:"days_of_week"`
	TimeFrom   string   `json:"time_from"`
	TimeTo     string   `json:"time_to"`
	Timezone   string   `json:"timezone,omitempty"`
}

// toDomain converts the request payload into domain inputs.
func (req generateSessionsRequest) toDomain() ([]curriculum.Module, schedule.GroupSchedule, error) {
	modules := make([]curriculum.Module, len(req.Modules))
	for i, m := range req.Modules {
		lessons := make([]curriculum.Lesson, len(m.Lessons))
		for j, l := range m.Lessons {
			lessons[j] = curriculum.Lesson{Title: l.Title}
		}
		modules[i] = curriculum.Module{Title: m.Title, Lessons: lessons}
	}

	startDate, err := time.Parse(dateLayout, req.Schedule.StartDate)
	if err != nil {
		return nil, schedule.GroupSchedule{}, err
	}

	days, err := schedule.ParseWeekdays(req.Schedule.DaysOfWeek)
	if err != nil {
		return nil, schedule.GroupSchedule{}, err
	}

	gs := schedule.GroupSchedule{
		StartDate:  startDate,
		DaysOfWeek: days,
		TimeFrom:   schedule.TimeOfDay(req.Schedule.TimeFrom),
		TimeTo:     schedule.TimeOfDay(req.Schedule.TimeTo),
		Timezone:   req.Schedule.Timezone,
	}
	return modules, gs, nil
}

// handleGenerateSessions handles POST /api/v1/groups/{id}/sessions/generate
func (s *Server) handleGenerateSessions(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	var req generateSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	modules, gs, err := req.toDomain()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cmd := command.GenerateSessionsCommand{
		GroupID:       groupID,
		CourseID:      req.CourseID,
		Modules:       modules,
		Schedule:      gs,
		MeetingLink:   req.MeetingLink,
		CorrelationID: getRequestID(r.Context()),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.GenerateSessionsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to generate sessions")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleRegenerateSessions handles POST /api/v1/groups/{id}/sessions/regenerate
func (s *Server) handleRegenerateSessions(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	var req generateSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	modules, gs, err := req.toDomain()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cmd := command.RegenerateSessionsCommand{
		GroupID:       groupID,
		CourseID:      req.CourseID,
		Modules:       modules,
		Schedule:      gs,
		MeetingLink:   req.MeetingLink,
		CorrelationID: getRequestID(r.Context()),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.RegenerateSessionsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to regenerate sessions")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleSoftDeleteSessions handles DELETE /api/v1/groups/{id}/sessions
func (s *Server) handleSoftDeleteSessions(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	result, err := s.deps.SoftDeleteSessionsHandler.Handle(r.Context(), command.SoftDeleteSessionsCommand{
		GroupID:       groupID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to delete sessions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// transitionSessionRequest is the payload for lifecycle transitions.
type transitionSessionRequest struct {
	Target        string `json:"target"`
	NewDate       string `json:"new_date,omitempty"`
	RecordingLink string `json:"recording_link,omitempty"`
}

// handleTransitionSession handles POST /api/v1/sessions/{id}/transition
func (s *Server) handleTransitionSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req transitionSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.TransitionSessionCommand{
		SessionID:     sessionID,
		Target:        session.Status(req.Target),
		RecordingLink: req.RecordingLink,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.NewDate != "" {
		newDate, err := time.Parse(dateLayout, req.NewDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "new_date must be YYYY-MM-DD")
			return
		}
		cmd.NewDate = newDate
	}

	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.TransitionSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to transition session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// updateSessionRequest is the payload for detail edits. Absent fields
// stay untouched; present fields overwrite, including to empty.
type updateSessionRequest struct {
	Title         *string `json:"title,omitempty"`
	MeetingLink   *string `json:"meeting_link,omitempty"`
	RecordingLink *string `json:"recording_link,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// handleUpdateSession handles PATCH /api/v1/sessions/{id}
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.UpdateSessionCommand{
		SessionID:     sessionID,
		Title:         req.Title,
		MeetingLink:   req.MeetingLink,
		RecordingLink: req.RecordingLink,
		Notes:         req.Notes,
		CorrelationID: getRequestID(r.Context()),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.UpdateSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to update session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// markAttendanceRequest is the payload for attendance recording.
type markAttendanceRequest struct {
	MarkedBy string `json:"marked_by"`
	Marks    []struct {
		StudentID string `json:"student_id"`
		Status    string `json:"status"`
		Comment   string `json:"comment,omitempty"`
	} `json:"marks"`
}

// handleMarkAttendance handles POST /api/v1/sessions/{id}/attendance
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req markAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	marks := make([]command.AttendanceMark, len(req.Marks))
	for i, m := range req.Marks {
		marks[i] = command.AttendanceMark{
			StudentID: m.StudentID,
			Status:    session.AttendanceStatus(m.Status),
			Comment:   m.Comment,
		}
	}

	cmd := command.MarkAttendanceCommand{
		SessionID:     sessionID,
		MarkedBy:      req.MarkedBy,
		Marks:         marks,
		CorrelationID: getRequestID(r.Context()),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.MarkAttendanceHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to mark attendance")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// recordAutomationEventRequest is the payload for dispatch outcomes.
type recordAutomationEventRequest struct {
	EventType string `json:"event_type"`
	Success   bool   `json:"success"`
	Delivered int    `json:"delivered,omitempty"`
}

// handleRecordAutomationEvent handles POST /api/v1/sessions/{id}/automation
func (s *Server) handleRecordAutomationEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req recordAutomationEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.RecordAutomationEventCommand{
		SessionID: sessionID,
		EventType: session.EventType(req.EventType),
		Success:   req.Success,
		Delivered: req.Delivered,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := s.deps.RecordAutomationEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record automation event")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE VIEW HANDLERS (read side)
// ══════════════════════════════════════════════════════════════════════════════

// handleGetGroupSchedule handles GET /api/v1/groups/{id}/schedule
//
// Filters (mutually exclusive): ?day=YYYY-MM-DD, ?module=N, ?from=&to=.
func (s *Server) handleGetGroupSchedule(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	q := query.GetGroupScheduleQuery{GroupID: groupID}

	if day := getQueryParam(r, "day", ""); day != "" {
		parsed, err := time.Parse(dateLayout, day)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "day must be YYYY-MM-DD")
			return
		}
		q.Day = &parsed
	}
	if module := r.URL.Query().Get("module"); module != "" {
		idx := getQueryParamInt(r, "module", -1)
		q.ModuleIndex = &idx
	}
	if from := getQueryParam(r, "from", ""); from != "" {
		parsedFrom, err := time.Parse(dateLayout, from)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be YYYY-MM-DD")
			return
		}
		parsedTo, err := time.Parse(dateLayout, getQueryParam(r, "to", ""))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be YYYY-MM-DD")
			return
		}
		q.From = &parsedFrom
		q.To = &parsedTo
	}

	result, err := s.deps.GetGroupScheduleHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get group schedule")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{FromCache: result.FromCache})
}

// handleGetSessionDetails handles GET /api/v1/sessions/{id}
func (s *Server) handleGetSessionDetails(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	result, err := s.deps.GetSessionDetailsHandler.Handle(r.Context(), query.GetSessionDetailsQuery{
		SessionID:         sessionID,
		IncludeAttendance: getQueryParamBool(r, "include_attendance"),
		IncludeAutomation: getQueryParamBool(r, "include_automation"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get session details")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetNextSession handles GET /api/v1/groups/{id}/sessions/next
func (s *Server) handleGetNextSession(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	result, err := s.deps.GetNextSessionHandler.Handle(r.Context(), query.GetNextSessionQuery{
		GroupID: groupID,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get next session")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetGroupStats handles GET /api/v1/groups/{id}/stats
func (s *Server) handleGetGroupStats(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")

	result, err := s.deps.GetSessionStatsHandler.Handle(r.Context(), query.GetSessionStatsQuery{
		GroupID:               groupID,
		IncludeDuplicateAudit: getQueryParamBool(r, "audit"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get group stats")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetTodaySessions handles GET /api/v1/sessions/today
func (s *Server) handleGetTodaySessions(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetTodaySessionsHandler.Handle(r.Context(), query.GetTodaySessionsQuery{
		OnlyScheduled: getQueryParamBool(r, "only_scheduled"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get today's sessions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError translates domain error kinds into HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	s.logger.Error(logMsg,
		logger.Err(err),
		logger.String("path", r.URL.Path),
		logger.String("request_id", getRequestID(r.Context())),
	)

	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err) || shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case shared.IsStateViolation(err):
		writeJSONError(w, http.StatusUnprocessableEntity, "state_violation", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
