package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/review"
)

type ReviewService interface {
	Create(ctx context.Context, actor model.Identity, bookingID string, rating int, text string) (*review.Result, error)
	Technician(ctx context.Context, technicianID string) (*review.TechnicianView, error)
	RecomputeRating(ctx context.Context, actor model.Identity, technicianID string) (*model.TechnicianProfile, error)
}

type ReviewHandler struct {
	svc ReviewService
}

func NewReviewHandler(svc ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

// POST /v1/reviews (CUSTOMER)
func (h *ReviewHandler) Create(c *gin.Context) {
	var in struct {
		BookingID string `json:"bookingId"`
		Rating    int    `json:"rating"`
		Text      string `json:"text"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	if !validID(c, "bookingId", in.BookingID) {
		return
	}
	res, err := h.svc.Create(c.Request.Context(), identityFrom(c), in.BookingID, in.Rating, in.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /v1/technicians/:id
func (h *ReviewHandler) Technician(c *gin.Context) {
	res, err := h.svc.Technician(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res.Reviews == nil {
		res.Reviews = []model.Review{}
	}
	c.JSON(http.StatusOK, res)
}

// POST /v1/technicians/:id/rating/recompute (ADMIN)
func (h *ReviewHandler) RecomputeRating(c *gin.Context) {
	res, err := h.svc.RecomputeRating(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
