package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/booking"
)

// BookingService は予約ハンドラが使う操作です
type BookingService interface {
	Create(ctx context.Context, actor model.Identity, input booking.CreateInput) (*model.Booking, error)
	List(ctx context.Context, actor model.Identity, status *model.BookingStatus) ([]model.Booking, error)
	Get(ctx context.Context, actor model.Identity, bookingID string) (*model.Booking, error)
	Transition(ctx context.Context, actor model.Identity, bookingID string, target model.BookingStatus) (*model.Booking, error)
	TechnicianStats(ctx context.Context, actor model.Identity, technicianID string) (*model.TechnicianStats, error)
}

type BookingHandler struct {
	svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// POST /v1/bookings (CUSTOMER)
func (h *BookingHandler) Create(c *gin.Context) {
	var in struct {
		ServiceID   string    `json:"serviceId"`
		ScheduledAt time.Time `json:"scheduledAt"` // RFC3339
		Notes       string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	if in.ServiceID == "" {
		abortWithError(c, model.NewValidationError("serviceId", "is required"))
		return
	}
	if !validID(c, "serviceId", in.ServiceID) {
		return
	}
	res, err := h.svc.Create(c.Request.Context(), identityFrom(c), booking.CreateInput{
		ServiceID:   in.ServiceID,
		ScheduledAt: in.ScheduledAt,
		Notes:       in.Notes,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /v1/bookings?status=PENDING
func (h *BookingHandler) List(c *gin.Context) {
	var status *model.BookingStatus
	if q, ok := c.GetQuery("status"); ok {
		s, err := model.ParseBookingStatus(q)
		if err != nil {
			abortWithError(c, err)
			return
		}
		status = &s
	}
	res, err := h.svc.List(c.Request.Context(), identityFrom(c), status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res == nil {
		res = []model.Booking{}
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	if !validID(c, "id", c.Param("id")) {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PATCH /v1/bookings/:id/status
func (h *BookingHandler) Transition(c *gin.Context) {
	if !validID(c, "id", c.Param("id")) {
		return
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	target, err := model.ParseBookingStatus(in.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := h.svc.Transition(c.Request.Context(), identityFrom(c), c.Param("id"), target)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/technicians/:id/stats (本人 or ADMIN)
func (h *BookingHandler) TechnicianStats(c *gin.Context) {
	res, err := h.svc.TechnicianStats(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
