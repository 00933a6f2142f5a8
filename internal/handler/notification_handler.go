package handler

import (
	"errors"
	"net/http"

	"wavely/backend/internal/models"
	"wavely/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes the per-recipient notification log over REST.
type NotificationHandler struct {
	notifications service.NotificationService
}

func NewNotificationHandler(notifications service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// NotificationResponse is a notification with its sender resolved to the
// public projection.
type NotificationResponse struct {
	models.Notification
	Sender service.PublicUser `json:"sender"`
}

func newNotificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		Notification: n,
		Sender:       service.NewPublicUser(n.Sender),
	}
}

// List godoc
// @Summary      List notifications
// @Description  Returns the caller's notifications newest-first with the unread count.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        page   query  int  false  "Page number"     default(1)
// @Param        limit  query  int  false  "Items per page"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  ErrorResponse
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	page, limit := pageParams(c, 20)

	list, err := h.notifications.List(c.Request.Context(), viewerID.(uint), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}

	items := make([]NotificationResponse, 0, len(list.Items))
	for _, n := range list.Items {
		items = append(items, newNotificationResponse(n))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": items,
		"unreadCount":   list.UnreadCount,
		"pagination":    NewPagination(page, limit, list.Total),
	})
}

// MarkRead godoc
// @Summary      Mark a notification read
// @Description  Marks one of the caller's notifications as read. Idempotent.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse "Not found or not yours"
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	notification, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), viewerID.(uint))
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			respondError(c, http.StatusNotFound, "Notification not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "notification": notification})
}

// MarkAllRead godoc
// @Summary      Mark all notifications read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	if err := h.notifications.MarkAllRead(c.Request.Context(), viewerID.(uint)); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to mark notifications as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Clear godoc
// @Summary      Clear all notifications
// @Description  Irreversibly deletes every notification belonging to the caller.
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /notifications/clear [delete]
func (h *NotificationHandler) Clear(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	if err := h.notifications.ClearAll(c.Request.Context(), viewerID.(uint)); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to clear notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
