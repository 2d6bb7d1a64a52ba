// Notification HTTP handlers.
//
//   - GET    /notifications               (own, newest first)
//   - GET    /notifications/unread-count
//   - POST   /notifications               (admin, master)
//   - PATCH  /notifications/{id}/read
//   - POST   /notifications/read-all
//   - DELETE /notifications/{id}
//
// Mark-read and delete on an absent id are no-ops; on another user's
// notification they answer 403.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// CreateNotificationRequest is the JSON payload for sending a notification.
type CreateNotificationRequest struct {
	UserID    string `json:"user_id"    binding:"required,max=64"          example:"staff-1"`
	Title     string `json:"title"      binding:"required,max=255"         example:"Pemeliharaan sistem"`
	Message   string `json:"message"    binding:"required"                 example:"Server akan dimatikan pukul 22:00."`
	Type      string `json:"type"       binding:"notification_type"        example:"warning"`
	ActionURL string `json:"action_url" binding:"omitempty,max=512"`
}

// UnreadCountResponse carries the unread badge count.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ownNotification checks that id is absent or belongs to u. absent is true
// when the id does not exist; the response has been written when allowed is
// false.
func (h *Handlers) ownNotification(c *gin.Context, u *domain.User, id string) (absent, allowed bool) {
	n, err := h.notifs.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		return true, true
	case err != nil:
		failErr(c, err, ErrCodeInternal)
		return false, false
	case n.UserID != u.ID:
		fail(c, http.StatusForbidden, ErrCodeForbidden, "notification belongs to another user")
		return false, false
	}
	return false, true
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List own notifications
// @Tags        Notifications
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  domain.Notification
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	items, err := h.notifs.List(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// UnreadCount godoc
// @ID          unreadNotificationCount
// @Summary     Count unread notifications
// @Tags        Notifications
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.UnreadCountResponse
// @Router      /notifications/unread-count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	n, err := h.notifs.UnreadCount(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Unread: n})
}

// CreateNotification godoc
// @ID          createNotification
// @Summary     Send a notification
// @Tags        Notifications
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateNotificationRequest  true  "Notification"
// @Success     201   {object}  domain.Notification
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse "Recipient not found"
// @Router      /notifications [post]
func (h *Handlers) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	ctx := c.Request.Context()
	if _, err := h.users.Get(ctx, req.UserID); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	n, err := h.notifs.Add(ctx, services.NewNotification{
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      domain.NotificationType(req.Type),
		ActionURL: req.ActionURL,
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusCreated, n)
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id   path  string  true  "Notification ID"
// @Success     204  {string}  string "No Content"
// @Failure     403  {object}  handlers.ErrorResponse "Not your notification"
// @Router      /notifications/{id}/read [patch]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	absent, allowed := h.ownNotification(c, u, id)
	if !allowed {
		return
	}
	if !absent {
		if err := h.notifs.MarkRead(c.Request.Context(), id); err != nil {
			failErr(c, err, ErrCodeInternal)
			return
		}
	}
	noContent(c)
}

// MarkAllNotificationsRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark all own notifications read
// @Tags        Notifications
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.MarkAllReadResponse
// @Router      /notifications/read-all [post]
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	n, err := h.notifs.MarkAllRead(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MarkAllReadResponse{Updated: n})
}

// DeleteNotification godoc
// @ID          deleteNotification
// @Summary     Delete a notification
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id   path  string  true  "Notification ID"
// @Success     204  {string}  string "No Content"
// @Failure     403  {object}  handlers.ErrorResponse "Not your notification"
// @Router      /notifications/{id} [delete]
func (h *Handlers) DeleteNotification(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	id := c.Param("id")
	absent, allowed := h.ownNotification(c, u, id)
	if !allowed {
		return
	}
	if !absent {
		if err := h.notifs.Delete(c.Request.Context(), id); err != nil {
			failErr(c, err, ErrCodeInternal)
			return
		}
	}
	noContent(c)
}
