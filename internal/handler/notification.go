package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

type NotificationService interface {
	ListUnread(ctx context.Context, identity model.Identity) ([]model.Notification, error)
	MarkRead(ctx context.Context, identity model.Identity, notificationID string) (*model.Notification, error)
}

type NotificationHandler struct {
	svc NotificationService
}

func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// GET /v1/notifications/unread
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	res, err := h.svc.ListUnread(c.Request.Context(), identityFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res == nil {
		res = []model.Notification{}
	}
	c.JSON(http.StatusOK, res)
}

// PATCH /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if !validID(c, "id", c.Param("id")) {
		return
	}
	res, err := h.svc.MarkRead(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
