package customization

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/middleware"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/export"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetItineraryHandler(w http.ResponseWriter, r *http.Request)
	DeleteItineraryHandler(w http.ResponseWriter, r *http.Request)
	ExportPDFHandler(w http.ResponseWriter, r *http.Request)
	CustomizeHandler(w http.ResponseWriter, r *http.Request)

	GetSessionHandler(w http.ResponseWriter, r *http.Request)
	CloseSessionHandler(w http.ResponseWriter, r *http.Request)
	SaveSessionHandler(w http.ResponseWriter, r *http.Request)
	ReloadSessionHandler(w http.ResponseWriter, r *http.Request)
	UpdateSummaryHandler(w http.ResponseWriter, r *http.Request)
	UpdateDayHandler(w http.ResponseWriter, r *http.Request)
	AddActivityHandler(w http.ResponseWriter, r *http.Request)
	UpdateActivityHandler(w http.ResponseWriter, r *http.Request)
	RemoveActivityHandler(w http.ResponseWriter, r *http.Request)
	BeginDragHandler(w http.ResponseWriter, r *http.Request)
	CancelDragHandler(w http.ResponseWriter, r *http.Request)
	ReorderHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// Routes mounts the itinerary and session endpoints.
func (h *HandlerImpl) Routes(r chi.Router) {
	r.Route("/itineraries/{aiGeneratedID}", func(r chi.Router) {
		r.Get("/", h.GetItineraryHandler)
		r.Delete("/", h.DeleteItineraryHandler)
		r.Get("/pdf", h.ExportPDFHandler)
		r.Post("/customize", h.CustomizeHandler)
	})
	r.Route("/sessions/{customizedID}", func(r chi.Router) {
		r.Get("/", h.GetSessionHandler)
		r.Delete("/", h.CloseSessionHandler)
		r.Post("/save", h.SaveSessionHandler)
		r.Post("/reload", h.ReloadSessionHandler)
		r.Put("/summary", h.UpdateSummaryHandler)
		r.Route("/days/{dayIndex}", func(r chi.Router) {
			r.Patch("/", h.UpdateDayHandler)
			r.Post("/activities", h.AddActivityHandler)
			r.Patch("/activities/{activityIndex}", h.UpdateActivityHandler)
			r.Delete("/activities/{activityIndex}", h.RemoveActivityHandler)
			r.Post("/drag", h.BeginDragHandler)
			r.Delete("/drag", h.CancelDragHandler)
			r.Put("/order", h.ReorderHandler)
		})
	})
}

func (h *HandlerImpl) fail(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, msg string, err error) {
	l.ErrorContext(r.Context(), msg, slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	api.HandleError(w, r, err)
}

func requireUser(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span) (string, bool) {
	userID, ok := appMiddleware.GetUserIDFromContext(r.Context())
	if !ok {
		l.ErrorContext(r.Context(), "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	span.SetAttributes(attribute.String("user.id", userID))
	return userID, true
}

func indexParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", types.ErrValidation, name, raw)
	}
	return i, nil
}

func modeParam(r *http.Request) (EditMode, error) {
	return ParseEditMode(r.URL.Query().Get("mode"))
}

// session resolves the caller's open session for the customizedID route parameter.
func (h *HandlerImpl) session(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span) (*Session, bool) {
	userID, ok := requireUser(w, r, l, span)
	if !ok {
		return nil, false
	}
	customizedID := chi.URLParam(r, "customizedID")
	span.SetAttributes(attribute.String("itinerary.customized_id", customizedID))
	sess, err := h.service.Session(r.Context(), userID, customizedID)
	if err != nil {
		h.fail(w, r, l, span, "Editing session not found", err)
		return nil, false
	}
	return sess, true
}

func (h *HandlerImpl) GetItineraryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "GetItinerary")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "GetItineraryHandler"))

	if _, ok := requireUser(w, r, l, span); !ok {
		return
	}
	aiGeneratedID := chi.URLParam(r, "aiGeneratedID")
	variant, err := types.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		h.fail(w, r, l, span, "Invalid variant", err)
		return
	}

	resp, err := h.service.ViewItinerary(ctx, aiGeneratedID, variant)
	if err != nil {
		h.fail(w, r, l, span, "Failed to load itinerary", err)
		return
	}
	span.SetStatus(codes.Ok, "Itinerary retrieved")
	api.SuccessResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) DeleteItineraryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "DeleteItinerary")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "DeleteItineraryHandler"))

	if _, ok := requireUser(w, r, l, span); !ok {
		return
	}
	aiGeneratedID := chi.URLParam(r, "aiGeneratedID")
	if err := h.service.DeleteItinerary(ctx, aiGeneratedID); err != nil {
		h.fail(w, r, l, span, "Failed to delete itinerary", err)
		return
	}
	l.InfoContext(ctx, "Itinerary deleted", slog.String("aiGeneratedID", aiGeneratedID))
	span.SetStatus(codes.Ok, "Itinerary deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) ExportPDFHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "ExportPDF")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "ExportPDFHandler"))

	if _, ok := requireUser(w, r, l, span); !ok {
		return
	}
	aiGeneratedID := chi.URLParam(r, "aiGeneratedID")
	variant, err := types.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		h.fail(w, r, l, span, "Invalid variant", err)
		return
	}
	resp, err := h.service.ViewItinerary(ctx, aiGeneratedID, variant)
	if err != nil {
		h.fail(w, r, l, span, "Failed to load itinerary", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, resp); err != nil {
		h.fail(w, r, l, span, "Failed to render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="itinerary-%s-%s.pdf"`, aiGeneratedID, resp.Shown))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		l.ErrorContext(ctx, "Failed to write pdf", slog.Any("error", err))
	}
	span.SetStatus(codes.Ok, "Pdf exported")
}

func (h *HandlerImpl) CustomizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "Customize")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "CustomizeHandler"))

	userID, ok := requireUser(w, r, l, span)
	if !ok {
		return
	}
	aiGeneratedID := chi.URLParam(r, "aiGeneratedID")
	sess, err := h.service.Customize(ctx, userID, aiGeneratedID)
	if err != nil {
		h.fail(w, r, l, span, "Failed to open editing session", err)
		return
	}
	span.SetStatus(codes.Ok, "Session opened")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "GetSession")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "GetSessionHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	span.SetStatus(codes.Ok, "")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "CloseSession")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "CloseSessionHandler"))

	userID, ok := requireUser(w, r, l, span)
	if !ok {
		return
	}
	if err := h.service.CloseSession(ctx, userID, chi.URLParam(r, "customizedID")); err != nil {
		h.fail(w, r, l, span, "Failed to close session", err)
		return
	}
	span.SetStatus(codes.Ok, "Session closed")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) SaveSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "SaveSession")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "SaveSessionHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	if err := sess.Save(ctx); err != nil {
		h.fail(w, r, l, span, "Manual save failed", err)
		return
	}
	span.SetStatus(codes.Ok, "Saved")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) ReloadSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "ReloadSession")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "ReloadSessionHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	if err := sess.Reload(ctx); err != nil {
		h.fail(w, r, l, span, "Reload failed", err)
		return
	}
	span.SetStatus(codes.Ok, "Reloaded")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) UpdateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "UpdateSummary")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "UpdateSummaryHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	var req types.UpdateSummaryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Bad request", err)
		return
	}
	if err := sess.SetSummary(req.Summary); err != nil {
		h.fail(w, r, l, span, "Failed to update summary", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) UpdateDayHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "UpdateDay")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "UpdateDayHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	mode, err := modeParam(r)
	if err != nil {
		h.fail(w, r, l, span, "Invalid edit mode", err)
		return
	}
	var req types.UpdateDayRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Bad request", err)
		return
	}

	patch := itinerary.DayPatch{Theme: req.Theme, Description: req.Description}
	if err := sess.EditDay(ctx, dayIndex, patch, mode); err != nil {
		h.fail(w, r, l, span, "Failed to edit day", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) AddActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "AddActivity")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "AddActivityHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	mode, err := modeParam(r)
	if err != nil {
		h.fail(w, r, l, span, "Invalid edit mode", err)
		return
	}
	var req types.ActivityRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Bad request", err)
		return
	}

	a, err := sess.AddActivity(ctx, dayIndex, itinerary.PatchFromRequest(req), mode)
	if err != nil {
		h.fail(w, r, l, span, "Failed to add activity", err)
		return
	}
	l.InfoContext(ctx, "Activity added", slog.String("activityID", a.ID), slog.String("mode", string(mode)))
	span.SetAttributes(attribute.String("activity.id", a.ID))
	span.SetStatus(codes.Ok, "Activity added")
	api.SuccessResponse(w, r, http.StatusCreated, sess.State())
}

func (h *HandlerImpl) UpdateActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "UpdateActivity")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "UpdateActivityHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	activityIndex, err := indexParam(r, "activityIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid activity index", err)
		return
	}
	mode, err := modeParam(r)
	if err != nil {
		h.fail(w, r, l, span, "Invalid edit mode", err)
		return
	}
	var req types.ActivityRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Bad request", err)
		return
	}

	if err := sess.EditActivity(ctx, dayIndex, activityIndex, itinerary.PatchFromRequest(req), mode); err != nil {
		h.fail(w, r, l, span, "Failed to edit activity", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) RemoveActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "RemoveActivity")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "RemoveActivityHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	activityIndex, err := indexParam(r, "activityIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid activity index", err)
		return
	}
	mode, err := modeParam(r)
	if err != nil {
		h.fail(w, r, l, span, "Invalid edit mode", err)
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	removed, err := sess.RemoveActivity(ctx, dayIndex, activityIndex, confirmed, mode)
	if err != nil {
		h.fail(w, r, l, span, "Failed to remove activity", err)
		return
	}
	l.InfoContext(ctx, "Activity removed", slog.String("activityID", removed.ID), slog.String("mode", string(mode)))
	span.SetStatus(codes.Ok, "Activity removed")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}

func (h *HandlerImpl) BeginDragHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "BeginDrag")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "BeginDragHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	if err := sess.BeginDrag(dayIndex); err != nil {
		h.fail(w, r, l, span, "Failed to start drag", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) CancelDragHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "CancelDrag")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "CancelDragHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	if err := sess.CancelDrag(dayIndex); err != nil {
		h.fail(w, r, l, span, "Failed to cancel drag", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CustomizationHandler").Start(r.Context(), "Reorder")
	defer span.End()
	r = r.WithContext(ctx)
	l := h.logger.With(slog.String("handler", "ReorderHandler"))

	sess, ok := h.session(w, r, l, span)
	if !ok {
		return
	}
	dayIndex, err := indexParam(r, "dayIndex")
	if err != nil {
		h.fail(w, r, l, span, "Invalid day index", err)
		return
	}
	var req types.ReorderRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Bad request", err)
		return
	}

	if err := sess.Reorder(ctx, dayIndex, req); err != nil {
		// the visible order has already been rolled back to the stored one
		h.fail(w, r, l, span, "Reorder failed", err)
		return
	}
	span.SetStatus(codes.Ok, "Reordered")
	api.SuccessResponse(w, r, http.StatusOK, sess.State())
}
