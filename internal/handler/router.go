package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uma-arai/sbcntr-homeservice/internal/auth"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

// DefaultAuthTimeout はトークン検証の制限時間です
const DefaultAuthTimeout = 5 * time.Second

// Dependencies はルーターの構築に必要なものです
type Dependencies struct {
	Verifier      auth.TokenVerifier
	AuthTimeout   time.Duration
	Bookings      BookingService
	Reviews       ReviewService
	Notifications NotificationService
	// Realtime は /ws を処理します。nil の場合はルートを登録しません
	Realtime http.Handler
}

// NewRouter はAPIのルーティングを構築します
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.AuthTimeout <= 0 {
		deps.AuthTimeout = DefaultAuthTimeout
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Realtime != nil {
		r.GET("/ws", gin.WrapH(deps.Realtime))
	}

	bh := NewBookingHandler(deps.Bookings)
	rh := NewReviewHandler(deps.Reviews)
	nh := NewNotificationHandler(deps.Notifications)

	v1 := r.Group("/v1")
	v1.Use(JWTAuth(deps.Verifier, deps.AuthTimeout))
	{
		v1.POST("/bookings", RequireRole(model.RoleCustomer), bh.Create)
		v1.GET("/bookings", bh.List)
		v1.GET("/bookings/:id", bh.Get)
		v1.PATCH("/bookings/:id/status", bh.Transition)

		v1.GET("/technicians/:id", rh.Technician)
		v1.GET("/technicians/:id/stats", bh.TechnicianStats)
		v1.POST("/technicians/:id/rating/recompute", RequireRole(model.RoleAdmin), rh.RecomputeRating)

		v1.POST("/reviews", RequireRole(model.RoleCustomer), rh.Create)

		v1.GET("/notifications/unread", nh.ListUnread)
		v1.PATCH("/notifications/:id/read", nh.MarkRead)
	}

	return r
}
