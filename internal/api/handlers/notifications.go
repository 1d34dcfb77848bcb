package handlers

import (
	"context"
	"net/http"
	"strconv"

	"relay-service/internal/api/middleware"
	"relay-service/internal/models"
	"relay-service/pkg/apperror"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxUnreadPage = 100

// UnreadLister is satisfied by repository.NotificationRepository
type UnreadLister interface {
	ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

type NotificationHandler struct {
	store UnreadLister
}

func NewNotificationHandler(store UnreadLister) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// ListUnread godoc
// @Summary Unread notifications
// @Description Notifications of the authenticated user that are not read yet, newest first. Lets a client catch up on what was delivered while it was offline.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (1-100)" default(20)
// @Success 200 {array} models.Notification
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /notifications [get]
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, apperror.AuthFailure("authentication required"))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > maxUnreadPage {
		response.Error(c, apperror.Validation("limit must be between 1 and %d", maxUnreadPage))
		return
	}

	items, err := h.store.ListUnread(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	c.JSON(http.StatusOK, items)
}
