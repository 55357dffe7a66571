package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/notification-dispatcher/internal/api/middleware"
	"github.com/notifyhub/notification-dispatcher/internal/dispatch"
	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// NotificationHandler is a thin adapter between the HTTP surface and the
// dispatch service; no domain logic lives here.
type NotificationHandler struct {
	svc    *dispatch.Service
	logger *zap.Logger
}

func NewNotificationHandler(svc *dispatch.Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// createRequest is the POST body: the notification fields plus an optional
// top-level force flag requesting a synchronous send in the request path.
type createRequest struct {
	domain.Notification
	Force bool `json:"force,omitempty"`
}

// Create handles POST /api/v1/notifications.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := h.svc.Create(r.Context(), &req.Notification, req.Force)
	if err != nil {
		h.logger.Warn("create notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list notifications failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	respondJSON(w, http.StatusOK, notifications)
}

// Cancel handles DELETE /api/v1/notifications/{id}.
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.logger.Warn("cancel notification failed",
			zap.String("id", id),
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
