// Package api: request handlers for the exhibit endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-anima/anima/internal/models"
)

// statusForError maps domain sentinel errors onto HTTP status codes.
// Unknown errors are internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidChoice),
		errors.Is(err, models.ErrUserTextTooLong),
		errors.Is(err, models.ErrVisitorNameTooLong):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionEnded),
		errors.Is(err, models.ErrQuotaReached),
		errors.Is(err, models.ErrDuplicateAnswer),
		errors.Is(err, models.ErrOutOfSequence),
		errors.Is(err, models.ErrWrongPhase),
		errors.Is(err, models.ErrTopicMismatch),
		errors.Is(err, models.ErrDialogueNotStarted),
		errors.Is(err, models.ErrPersonaExists),
		errors.Is(err, models.ErrThresholdNotReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and renders a domain error. Internal errors get a generic
// message; client errors surface the sentinel text.
func writeError(w http.ResponseWriter, handler string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error("Server."+handler+": internal error", "error", err)
		writeJSONResponse(w, status, models.Error("Internal server error"))
		return
	}
	slog.Warn("Server."+handler+": request rejected", "error", err, "status", status)
	writeJSONResponse(w, status, models.Error(err.Error()))
}

// decodeBody decodes a JSON request body into dst, tolerating an empty body.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetGlobalState(r.Context()); err != nil {
		slog.Error("Server.healthHandler: store unavailable", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("store unavailable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// stateHandler exposes the shared installation state for the exhibit
// displays: phase, cycle, question cursor, and cumulative progress.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	global, err := s.store.GetGlobalState(r.Context())
	if err != nil {
		writeError(w, "stateHandler", err)
		return
	}
	profile, err := s.store.GetValueProfile(r.Context())
	if err != nil {
		writeError(w, "stateHandler", err)
		return
	}
	bankSize, err := s.store.CountQuestions(r.Context())
	if err != nil {
		writeError(w, "stateHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"phase":              global.Phase,
		"cycle":              global.CycleNumber,
		"next_question_id":   global.NextQuestionID,
		"answers_aggregated": profile.Total(),
		"question_bank_size": bankSize,
		"persona_formed":     global.PersonaText != "",
		"formed_at":          global.FormedAt,
	}))
}

type createSessionRequest struct {
	VisitorName string `json:"visitor_name"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	sess, err := s.lifecycle.StartSession(r.Context(), req.VisitorName)
	if err != nil {
		writeError(w, "createSessionHandler", err)
		return
	}
	slog.Info("Server.createSessionHandler: session created", "session", sess.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(sess))
}

func (s *Server) currentQuestionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	q, err := s.lifecycle.CurrentQuestion(r.Context(), sessionID)
	if err != nil {
		writeError(w, "currentQuestionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(q))
}

type submitAnswerRequest struct {
	QuestionID int           `json:"question_id"`
	Choice     models.Choice `json:"choice"`
}

func (s *Server) submitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req submitAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.submitAnswerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.lifecycle.SubmitAnswer(r.Context(), sessionID, req.QuestionID, req.Choice)
	if err != nil {
		writeError(w, "submitAnswerHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

type endSessionRequest struct {
	Reason models.EndReason `json:"reason"`
}

func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req endSessionRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.endSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Reason == "" {
		req.Reason = models.EndReasonVisitorLeft
	}
	if !models.IsValidEndReason(req.Reason) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid end reason"))
		return
	}
	result, err := s.lifecycle.EndSession(r.Context(), sessionID, req.Reason)
	if err != nil {
		writeError(w, "endSessionHandler", err)
		return
	}
	if s.watcher != nil {
		s.watcher.Cancel(sessionID)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

type dialogueStartRequest struct {
	TopicID int `json:"topic_id"`
}

func (s *Server) dialogueStartHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req dialogueStartRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.dialogueStartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.dialogue.Start(r.Context(), sessionID, req.TopicID)
	if err != nil {
		writeError(w, "dialogueStartHandler", err)
		return
	}
	if s.watcher != nil {
		s.watcher.Touch(sessionID)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

type dialogueTurnRequest struct {
	TopicID  int    `json:"topic_id"`
	UserText string `json:"user_text"`
}

func (s *Server) dialogueTurnHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req dialogueTurnRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.dialogueTurnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.dialogue.Turn(r.Context(), sessionID, req.TopicID, req.UserText)
	if err != nil {
		writeError(w, "dialogueTurnHandler", err)
		return
	}
	if s.watcher != nil {
		if result.SessionEnded {
			s.watcher.Cancel(sessionID)
		} else {
			s.watcher.Touch(sessionID)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

type dialogueNudgeRequest struct {
	RecentMessageCount int `json:"recent_message_count"`
}

func (s *Server) dialogueNudgeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req dialogueNudgeRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.dialogueNudgeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.dialogue.Nudge(r.Context(), sessionID, req.RecentMessageCount)
	if err != nil {
		writeError(w, "dialogueNudgeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

type synthesizeRequest struct {
	Force               bool `json:"force"`
	AllowBelowThreshold bool `json:"allow_below_threshold"`
}

func (s *Server) synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Warn("Server.synthesizeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	result, err := s.lifecycle.SynthesizePersona(r.Context(), req.Force, req.AllowBelowThreshold)
	if err != nil {
		writeError(w, "synthesizeHandler", err)
		return
	}
	slog.Info("Server.synthesizeHandler: persona available", "reused", result.Reused, "fallback", result.UsedFallback)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) cycleResetHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.lifecycle.ResetCycle(r.Context(), models.EndReasonCycleReset)
	if err != nil {
		writeError(w, "cycleResetHandler", err)
		return
	}
	s.policy.ClearCache()
	slog.Info("Server.cycleResetHandler: cycle reset", "cycle", result.Cycle, "ended_sessions", result.EndedSessions)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) policyCacheClearHandler(w http.ResponseWriter, r *http.Request) {
	s.policy.ClearCache()
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("policy cache cleared", nil))
}
