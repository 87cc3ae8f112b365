package survey

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alouzou/sondage/backend/internal/auth"
	"github.com/alouzou/sondage/backend/internal/httputil"
	"github.com/alouzou/sondage/backend/internal/models"
)

// Handler holds survey HTTP handlers.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("component", "survey-http")}
}

// Register mounts the survey routes. The caller is expected to have installed
// an authentication middleware on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/create", h.Create)
	r.Get("/my-surveys", h.MySurveys)
	r.Get("/category/{categoryId}", h.ListByCategory)
	r.Get("/creator/{creatorId}", h.ListByCreator)
	r.Delete("/delete/{idSurvey}", h.Delete)
	r.Post("/export", h.Export)
	r.Get("/export/{key}", h.DownloadExport)
	r.Delete("/export/{key}", h.DeleteExport)
	r.Get("/{id}/activity", h.Activity)
	r.Get("/{id}", h.Get)
	r.Get("/", h.ListAll)
}

func caller(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// Create validates the payload and stores a new survey.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSurveyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), caller(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.SurveyViewFromEntity(*created))
}

// MySurveys lists the caller's own surveys.
func (h *Handler) MySurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.svc.MySurveys(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SurveyViews(surveys))
}

// Get returns one survey, or a bodiless 404.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.Int64Param(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid survey id")
		return
	}

	sv, err := h.svc.Get(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sv == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SurveyViewFromEntity(*sv))
}

func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.Int64Param(r, "categoryId")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	surveys, err := h.svc.ListByCategory(r.Context(), caller(r), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SurveyViews(surveys))
}

func (h *Handler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.Int64Param(r, "creatorId")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid creator id")
		return
	}

	surveys, err := h.svc.ListByCreator(r.Context(), caller(r), creatorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SurveyViews(surveys))
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.svc.ListAll(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SurveyViews(surveys))
}

// Delete removes a survey; it answers 204 whether or not the id existed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.Int64Param(r, "idSurvey")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid survey id")
		return
	}

	if err := h.svc.Delete(r.Context(), caller(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.Int64Param(r, "id")
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid survey id")
		return
	}

	entries, err := h.svc.Activity(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Export(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// DownloadExport streams a stored snapshot as an attachment.
func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, err := h.svc.DownloadExport(r.Context(), caller(r), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=surveys-"+key+".json")
	w.Write(data)
}

func (h *Handler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteExport(r.Context(), caller(r), chi.URLParam(r, "key")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, verr)
	case errors.Is(err, auth.ErrUnauthenticated):
		httputil.WriteError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, auth.ErrForbidden):
		h.log.Warn("forbidden", "method", r.Method, "path", r.URL.Path, "username", caller(r).Username)
		httputil.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrExportNotFound):
		httputil.WriteError(w, http.StatusNotFound, "export not found")
	case errors.Is(err, ErrUserNotFound):
		h.log.Error("caller has no account", "path", r.URL.Path, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, ErrUserNotFound.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
