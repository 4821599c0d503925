package okr

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/auth"
	"github.com/saulo-duarte/okr-progress/internal/config"
	"github.com/saulo-duarte/okr-progress/internal/progress"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, err := auth.GetUserClaimsFromContext(r.Context())
	if err != nil {
		config.WithContext(r.Context()).Warn("User not authenticated")
		config.Error(w, http.StatusUnauthorized, "unauthorized", "")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		config.WithContext(r.Context()).WithError(err).Warn("Invalid user id in token")
		config.Error(w, http.StatusUnauthorized, "unauthorized", "")
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		config.Error(w, http.StatusBadRequest, "invalid id", "")
		return uuid.Nil, false
	}
	return id, true
}

// authorize resolves the caller and checks that they own the addressed
// resource. Resources owned by someone else are reported as missing.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, owner func(context.Context, uuid.UUID) (uuid.UUID, error)) (uuid.UUID, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return uuid.Nil, false
	}

	ownerID, err := owner(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to resolve resource owner")
		return uuid.Nil, false
	}
	if ownerID != userID {
		config.WithContext(r.Context()).WithField("resource_id", id).Warn("Access to foreign resource denied")
		config.Error(w, http.StatusNotFound, "not found", "")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		config.WithContext(r.Context()).WithError(err).Warn("Invalid request body")
		config.Error(w, http.StatusBadRequest, "invalid request body", "")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := config.WithContext(r.Context())
	switch {
	case apperror.IsValidation(err):
		config.Error(w, http.StatusBadRequest, err.Error(), apperror.ReasonOf(err))
	case apperror.IsBusinessRule(err):
		config.Error(w, http.StatusConflict, err.Error(), apperror.ReasonOf(err))
	case apperror.IsNotFound(err):
		config.Error(w, http.StatusNotFound, err.Error(), "")
	case apperror.IsConcurrency(err):
		log.WithError(err).Warn(msg)
		config.Error(w, http.StatusConflict, "concurrent modification, please retry", "")
	default:
		log.WithError(err).Error(msg)
		config.Error(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func (h *Handler) CreateObjective(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto CreateObjectiveDTO
	if !decode(w, r, &dto) {
		return
	}

	goal, err := h.service.CreateObjective(r.Context(), dto.toSpec(userID))
	if err != nil {
		writeError(w, r, err, "Failed to create objective")
		return
	}

	config.JSON(w, http.StatusCreated, toObjectiveResponse(goal))
}

func (h *Handler) ListObjectives(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	goals, err := h.service.ListObjectives(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list objectives")
		return
	}

	responses := make([]ObjectiveResponse, 0, len(goals))
	for i := range goals {
		responses = append(responses, toObjectiveResponse(&goals[i]))
	}
	config.JSON(w, http.StatusOK, responses)
}

func (h *Handler) GetObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.ObjectiveOwner)
	if !ok {
		return
	}

	goal, err := h.service.GetObjective(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get objective")
		return
	}

	config.JSON(w, http.StatusOK, toObjectiveResponse(goal))
}

func (h *Handler) UpdateObjectiveStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.ObjectiveOwner)
	if !ok {
		return
	}

	var dto UpdateObjectiveStatusDTO
	if !decode(w, r, &dto) {
		return
	}

	if _, err := h.service.UpdateObjectiveStatus(r.Context(), id, dto.Status); err != nil {
		writeError(w, r, err, "Failed to update objective status")
		return
	}

	goal, err := h.service.GetObjective(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get objective")
		return
	}
	config.JSON(w, http.StatusOK, toObjectiveResponse(goal))
}

func (h *Handler) DeleteObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.ObjectiveOwner)
	if !ok {
		return
	}

	if err := h.service.DeleteObjective(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete objective")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddKeyResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.ObjectiveOwner)
	if !ok {
		return
	}

	var dto CreateKeyResultDTO
	if !decode(w, r, &dto) {
		return
	}

	kr, err := h.service.AddKeyResult(r.Context(), id, dto.toSpec())
	if err != nil {
		writeError(w, r, err, "Failed to add key result")
		return
	}

	config.JSON(w, http.StatusCreated, toKeyResultResponse(kr))
}

func (h *Handler) UpdateKeyResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.KeyResultOwner)
	if !ok {
		return
	}

	var dto UpdateKeyResultDTO
	if !decode(w, r, &dto) {
		return
	}

	kr, err := h.service.UpdateKeyResult(r.Context(), id, dto.toPatch())
	if err != nil {
		writeError(w, r, err, "Failed to update key result")
		return
	}

	config.JSON(w, http.StatusOK, toKeyResultResponse(kr))
}

func (h *Handler) DeleteKeyResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.KeyResultOwner)
	if !ok {
		return
	}

	if err := h.service.DeleteKeyResult(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete key result")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.KeyResultOwner)
	if !ok {
		return
	}

	var dto RecordProgressDTO
	if !decode(w, r, &dto) {
		return
	}
	if dto.Value == nil {
		config.Error(w, http.StatusBadRequest, "value is required", apperror.ReasonInvalidValue)
		return
	}

	result, err := h.service.RecordProgress(r.Context(), id, *dto.Value, dto.Notes)
	if err != nil {
		writeError(w, r, err, "Failed to record progress")
		return
	}

	config.JSON(w, http.StatusCreated, toRecordProgressResponse(result))
}

func (h *Handler) ProgressHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.KeyResultOwner)
	if !ok {
		return
	}

	var bounds progress.Range
	var err error
	if bounds.From, err = parseBound(r.URL.Query().Get("from"), false); err != nil {
		config.Error(w, http.StatusBadRequest, "invalid from", "")
		return
	}
	if bounds.To, err = parseBound(r.URL.Query().Get("to"), true); err != nil {
		config.Error(w, http.StatusBadRequest, "invalid to", "")
		return
	}

	history, err := h.service.ProgressHistory(r.Context(), id, bounds)
	if err != nil {
		writeError(w, r, err, "Failed to load progress history")
		return
	}

	updates, err := progress.Collect(history)
	if err != nil {
		writeError(w, r, err, "Failed to load progress history")
		return
	}

	responses := make([]ProgressUpdateResponse, 0, len(updates))
	for i := range updates {
		responses = append(responses, toProgressUpdateResponse(&updates[i]))
	}
	config.JSON(w, http.StatusOK, responses)
}

func (h *Handler) DeleteProgressUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, h.service.ProgressUpdateOwner)
	if !ok {
		return
	}

	if err := h.service.DeleteProgressUpdate(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete progress update")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseBound accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := util.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	t := d.Time.UTC()
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
