package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KingMavin/UniSemi/internal/application/command"
	"github.com/KingMavin/UniSemi/internal/application/query"
	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "UniSemi academic records API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"login":    "/api/login",
			"results":  "/api/results",
			"students": "/api/students",
			"logs":     "/api/logs",
		},
	})
}

// handleHealth reports every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]any{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type loginRequest struct {
	Passcode string `json:"passcode"`
}

// handleLogin handles POST /api/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if req.Passcode == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", "Passcode required")
		return
	}

	if s.deps.Auth == nil || !s.deps.Auth.Verify(req.Passcode) {
		if s.deps.Recorder != nil {
			s.deps.Recorder.Record(r.Context(), audit.ActionLoginFailed,
				fmt.Sprintf("Failed login from %s", getClientIP(r)))
		}
		s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid passcode")
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]bool{"authenticated": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetResult handles GET /api/results/{matric}
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.GetStudent.Handle(r.Context(), query.GetStudentQuery{
		MatricNumber: r.PathValue("matric"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, record)
}

// saveResultRequest is the body of POST /api/results.
type saveResultRequest struct {
	MatricNumber string            `json:"matricNumber"`
	Name         string            `json:"name"`
	Department   string            `json:"department"`
	Level        flexString        `json:"level"`
	Semester     flexString        `json:"semester"`
	Courses      []academic.Course `json:"courses"`
}

type saveResultResponse struct {
	MatricNumber string `json:"matricNumber"`
	GPA          string `json:"gpa"`
	CGPA         string `json:"cgpa"`
	Created      bool   `json:"created"`
}

// handleSaveResult handles POST /api/results
func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	var req saveResultRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	result, err := s.deps.SaveResult.Handle(r.Context(), command.SaveResultCommand{
		MatricNumber: req.MatricNumber,
		Name:         req.Name,
		Department:   req.Department,
		Level:        string(req.Level),
		Semester:     string(req.Semester),
		Courses:      req.Courses,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, r, status, saveResultResponse{
		MatricNumber: result.MatricNumber,
		GPA:          result.GPA,
		CGPA:         result.CGPA,
		Created:      result.Created,
	})
}

// handleDeleteResult handles DELETE /api/results/{matric}
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	matric := r.PathValue("matric")
	if err := s.deps.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{MatricNumber: matric}); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"deleted": strings.TrimSpace(matric)})
}

// handleListSnapshots handles GET /api/results/{matric}/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.deps.ListSnapshots.Handle(r.Context(), query.ListSnapshotsQuery{
		MatricNumber: r.PathValue("matric"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	count := len(snapshots)
	s.writeJSONWithMeta(w, r, http.StatusOK, snapshots, &ResponseMeta{Count: &count})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT LISTING
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/students
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	limit, ok := getQueryParamInt(r, "limit", 0)
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", "limit must be an integer")
		return
	}

	students, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{Limit: limit})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	count := len(students)
	s.writeJSONWithMeta(w, r, http.StatusOK, students, &ResponseMeta{Count: &count, Limit: limit})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListLogs handles GET /api/logs
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := getQueryParamInt(r, "limit", 0)
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, "invalid_input", "limit must be an integer")
		return
	}

	entries, err := s.deps.ListAuditLog.Handle(r.Context(), query.ListAuditLogQuery{Limit: limit})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	count := len(entries)
	s.writeJSONWithMeta(w, r, http.StatusOK, entries, &ResponseMeta{Count: &count, Limit: limit})
}

// handleClearLogs handles DELETE /api/logs
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ClearAuditLog.Handle(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"message": "Cleared"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING & DECODING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an application error onto a status code.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	message := publicMessage(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
		if !shared.IsCorrupt(err) {
			message = "An unexpected error occurred"
		}
	}
	s.writeError(w, r, status, code, message)
}

func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_input"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsUnavailable(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	case shared.IsCorrupt(err):
		return http.StatusInternalServerError, "corrupt_record"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns the domain message of err without wrapped causes.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("cannot read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed JSON body")
	}
	return nil
}

// flexString accepts a JSON string or number, so {"level": 100} and
// {"level": "100"} mean the same.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
