package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/edupredict/student-insight/internal/application/command"
	"github.com/edupredict/student-insight/internal/application/projection"
	"github.com/edupredict/student-insight/internal/application/query"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/infrastructure/external/face"
	"github.com/edupredict/student-insight/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionDTO is the public view of a session.
type SessionDTO struct {
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	FirstName   string            `json:"firstName"`
	Email       string            `json:"email"`
	Role        identity.RoleName `json:"role"`
	Institution string            `json:"institution"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

// AuthDTO is returned by sign-in and sign-up.
type AuthDTO struct {
	Token   string     `json:"token"`
	Session SessionDTO `json:"session"`
}

func toSessionDTO(s *identity.Session) SessionDTO {
	return SessionDTO{
		UserID:      s.UserID,
		Name:        s.Name,
		FirstName:   s.FirstName(),
		Email:       s.Email,
		Role:        s.Role.Name(),
		Institution: s.Institution,
		ExpiresAt:   s.ExpiresAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", "Server is not ready", nil)
		return
	}
	if s.deps.HealthChecker != nil && !s.deps.HealthChecker.Check(r.Context()).Healthy {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", "Dependencies are not healthy", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Student Insight API",
		"version": s.config.Version,
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// authenticated resolves the bearer token into a session and rejects the
// request with 401 when there is none.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Auth == nil {
			writeNotImplemented(w, r)
			return
		}
		sess, err := s.deps.Auth.CurrentSession(r.Context(), bearerToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeySession, sess)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", sess.UserID))
		next(w, r.WithContext(ctx))
	}
}

// gated answers 404 when the feature is off for the signed-in user. It must
// run inside authenticated.
func (s *Server) gated(feature string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Features != nil {
			sess := sessionFrom(r.Context())
			if !s.deps.Features.EnabledFor(feature, sess.UserID, string(sess.Role.Name())) {
				writeJSONError(w, r, http.StatusNotFound, "feature_disabled", "This feature is not available", nil)
				return
			}
		}
		next(w, r)
	}
}

func sessionFrom(ctx context.Context) *identity.Session {
	sess, _ := ctx.Value(contextKeySession).(*identity.Session)
	return sess
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeNotImplemented(w, r)
		return
	}
	var cmd command.SignInCommand
	if !s.decodeJSON(w, r, &cmd) {
		return
	}
	res, err := s.deps.Auth.SignIn(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, AuthDTO{Token: res.Token, Session: toSessionDTO(res.Session)})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeNotImplemented(w, r)
		return
	}
	var cmd command.SignUpCommand
	if !s.decodeJSON(w, r, &cmd) {
		return
	}
	res, err := s.deps.Auth.SignUp(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, AuthDTO{Token: res.Token, Session: toSessionDTO(res.Session)})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeNotImplemented(w, r)
		return
	}
	if err := s.deps.Auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toSessionDTO(sessionFrom(r.Context())))
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD & ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func tableFilter(r *http.Request) projection.TableFilter {
	q := r.URL.Query()
	return projection.TableFilter{Risk: q.Get("risk"), Search: q.Get("search")}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dashboard == nil {
		writeNotImplemented(w, r)
		return
	}
	dto, err := s.deps.Dashboard.Handle(r.Context(), query.GetDashboardQuery{
		Actor:  sessionFrom(r.Context()),
		Filter: tableFilter(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Students == nil {
		writeNotImplemented(w, r)
		return
	}
	q := r.URL.Query()
	dto, err := s.deps.Students.List(r.Context(), query.ListStudentsQuery{
		Actor:  sessionFrom(r.Context()),
		Filter: tableFilter(r),
		Field:  q.Get("field"),
		Op:     q.Get("op"),
		Value:  q.Get("value"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, dto.Students, &ResponseMeta{Total: dto.Total})
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Students == nil {
		writeNotImplemented(w, r)
		return
	}
	dto, err := s.deps.Students.Get(r.Context(), query.GetStudentQuery{
		Actor: sessionFrom(r.Context()),
		ID:    r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Roster == nil {
		writeNotImplemented(w, r)
		return
	}
	var in command.StudentInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	res, err := s.deps.Roster.Add(r.Context(), command.AddStudentCommand{Actor: sessionFrom(r.Context()), Input: in})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Roster == nil {
		writeNotImplemented(w, r)
		return
	}
	var in command.StudentInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	res, err := s.deps.Roster.Update(r.Context(), command.UpdateStudentCommand{
		Actor: sessionFrom(r.Context()),
		ID:    r.PathValue("id"),
		Input: in,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleDeleteStudent requires ?confirm=true.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Roster == nil {
		writeNotImplemented(w, r)
		return
	}
	err := s.deps.Roster.Delete(r.Context(), command.DeleteStudentCommand{
		Actor:     sessionFrom(r.Context()),
		ID:        r.PathValue("id"),
		Confirmed: getQueryParamBool(r, "confirm"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Export == nil {
		writeNotImplemented(w, r)
		return
	}
	dto, err := s.deps.Export.Handle(r.Context(), query.ExportRosterQuery{Actor: sessionFrom(r.Context())})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", dto.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dto.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dto.Data)
}

// handleImport accepts a raw CSV body or a multipart form with a "file" part.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Import == nil {
		writeNotImplemented(w, r)
		return
	}

	body := io.Reader(r.Body)
	if isMultipart(r) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "A CSV file is required", nil)
			return
		}
		defer file.Close()
		body = file
	}

	res, err := s.deps.Import.Handle(r.Context(), command.ImportRosterCommand{
		Actor: sessionFrom(r.Context()),
		CSV:   body,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDICTION & ASSISTANT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type savePredictionRequest struct {
	RollNo     string                `json:"rollNo"`
	Prediction *command.StudentInput `json:"prediction"`
}

type askRequest struct {
	Message string `json:"message"`
}

func (s *Server) handlePredictPreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Predictions == nil {
		writeNotImplemented(w, r)
		return
	}
	var in command.StudentInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	dto, err := s.deps.Predictions.Handle(r.Context(), query.PredictPreviewQuery{Actor: sessionFrom(r.Context()), Input: in})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handlePredictSave(w http.ResponseWriter, r *http.Request) {
	if s.deps.Roster == nil {
		writeNotImplemented(w, r)
		return
	}
	var req savePredictionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.deps.Roster.SavePrediction(r.Context(), command.SavePredictionCommand{
		Actor:      sessionFrom(r.Context()),
		RollNo:     req.RollNo,
		Prediction: req.Prediction,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeNotImplemented(w, r)
		return
	}
	var req askRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.deps.Assistant.Ask(r.Context(), query.AskAssistantQuery{
		Actor:   sessionFrom(r.Context()),
		Message: req.Message,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reply)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeNotImplemented(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Assistant.Suggestions())
}

// ══════════════════════════════════════════════════════════════════════════════
// FACE ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type faceRequest struct {
	Descriptor face.Descriptor `json:"descriptor"`
}

// uploadedCamera builds a camera from the request. Multipart requests carry
// the image in "file" and an optional JSON descriptor in "descriptor"; JSON
// requests carry only a descriptor. A request with neither yields a camera
// that cannot be opened.
func uploadedCamera(r *http.Request) (*face.UploadCamera, error) {
	cam := &face.UploadCamera{}

	if isMultipart(r) {
		if raw := r.FormValue("descriptor"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cam.Descriptor); err != nil {
				return nil, err
			}
		}
		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			cam.Body = file
			cam.Filename = header.Filename
			cam.ContentType = header.Header.Get("Content-Type")
		case errors.Is(err, http.ErrMissingFile):
		default:
			return nil, err
		}
	} else if r.ContentLength != 0 {
		var req faceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		cam.Descriptor = req.Descriptor
	}

	if cam.Body == nil && len(cam.Descriptor) > 0 {
		cam.Body = io.NopCloser(bytes.NewReader(nil))
	}
	return cam, nil
}

func (s *Server) handleFaceVerify(w http.ResponseWriter, r *http.Request) {
	if s.deps.Face == nil {
		writeNotImplemented(w, r)
		return
	}
	cam, err := uploadedCamera(r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Malformed face upload", nil)
		return
	}
	res, err := s.deps.Face.Verify(r.Context(), command.VerifyAttendanceCommand{Actor: sessionFrom(r.Context()), Camera: cam})
	s.writeFaceResult(w, r, res, err)
}

func (s *Server) handleFaceRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.Face == nil {
		writeNotImplemented(w, r)
		return
	}
	cam, err := uploadedCamera(r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Malformed face upload", nil)
		return
	}
	res, err := s.deps.Face.Register(r.Context(), command.RegisterFaceCommand{Actor: sessionFrom(r.Context()), Camera: cam})
	s.writeFaceResult(w, r, res, err)
}

// writeFaceResult answers 200 for a successful scan and 422 with the
// scanner message otherwise.
func (s *Server) writeFaceResult(w http.ResponseWriter, r *http.Request, res *command.FaceResult, err error) {
	if err != nil {
		if res != nil && shared.IsForbidden(err) {
			writeJSONError(w, r, http.StatusForbidden, "forbidden", res.Message, nil)
			return
		}
		s.writeError(w, r, err)
		return
	}
	if !res.Success {
		writeJSONError(w, r, http.StatusUnprocessableEntity, "face_rejected", res.Message, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// decodeJSON decodes the body into v and writes a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large", nil)
			return false
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", nil)
		return false
	}
	return true
}

// writeError maps an application error onto a status code and envelope.
// Unexpected errors are logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *command.ValidationError
	if errors.As(err, &verr) {
		writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "Invalid input", verr.Fields)
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case shared.IsValidation(err):
		status, code = http.StatusBadRequest, "invalid_input"
	case shared.IsUnauthorized(err):
		status, code = http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		status, code = http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		status, code = http.StatusConflict, "conflict"
	case shared.IsExternalService(err):
		status, code = http.StatusBadGateway, "upstream_error"
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		writeJSONError(w, r, status, code, "An unexpected error occurred", nil)
		return
	}
	writeJSONError(w, r, status, code, errorMessage(err), nil)
}

// errorMessage prefers the user-facing message of a domain error.
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func writeNotImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "This feature is not enabled", nil)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a JSON response with metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta != nil && meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeEnvelope(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message, Details: details},
		RequestID: getRequestID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
