package masterdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cbtimport/internal/app/apiresp"
	"cbtimport/internal/auth"

	"github.com/go-chi/chi/v5"
)

type subjectService interface {
	ListSubjects(ctx context.Context, activeOnly bool) ([]Subject, error)
	CreateSubject(ctx context.Context, actor string, in CreateSubjectInput) (*Subject, error)
	DeactivateSubject(ctx context.Context, actor string, id int64) error
}

type Handler struct {
	svc subjectService
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createSubjectRequest struct {
	EducationLevel string `json:"education_level"`
	SubjectType    string `json:"subject_type"`
	Name           string `json:"name"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	activeOnly := !strings.EqualFold(r.URL.Query().Get("all"), "true")
	items, err := h.svc.ListSubjects(r.Context(), activeOnly)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	subject, err := h.svc.CreateSubject(r.Context(), actorName(r), CreateSubjectInput{
		EducationLevel: req.EducationLevel,
		SubjectType:    req.SubjectType,
		Name:           req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "education_level and name are required"})
		case errors.Is(err, ErrDuplicate):
			writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: err.Error()})
		default:
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: subject})
}

func (h *Handler) DeactivateSubject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid subject id"})
		return
	}

	if err := h.svc.DeactivateSubject(r.Context(), actorName(r), id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: "subject not found"})
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid subject id"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{"id": id, "is_active": false}})
}

func actorName(r *http.Request) string {
	if c, ok := auth.CurrentClient(r.Context()); ok {
		return c.Name
	}
	return ""
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	apiresp.WriteLegacy(w, r, code, payload.OK, payload.Data, payload.Error)
}
