package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/notification"
)

// Result はレビュー作成の結果です
// Technician は再計算後のプロフィールです
type Result struct {
	Review     *model.Review            `json:"review"`
	Technician *model.TechnicianProfile `json:"technician"`
}

// TechnicianView は技術者の公開プロフィールです
type TechnicianView struct {
	Profile *model.TechnicianProfile `json:"profile"`
	Reviews []model.Review           `json:"reviews"`
}

// Service はレビュー作成と技術者プロフィールの参照を担当します
type Service struct {
	bookings    repository.BookingRepository
	reviews     repository.ReviewRepository
	technicians repository.TechnicianRepository
	aggregator  *Aggregator
	notifier    notification.Notifier
	clock       func() time.Time
	newID       func() string
}

// NewService は新しいServiceを作成します
func NewService(
	bookings repository.BookingRepository,
	reviews repository.ReviewRepository,
	technicians repository.TechnicianRepository,
	notifier notification.Notifier,
) *Service {
	return &Service{
		bookings:    bookings,
		reviews:     reviews,
		technicians: technicians,
		aggregator:  NewAggregator(technicians),
		notifier:    notifier,
		clock:       time.Now,
		newID:       uuid.NewString,
	}
}

// Create は完了済み予約に対するレビューを作成し、技術者の評価を再計算します
// 同じ予約への二件目は、同時に送信された場合も ErrDuplicateReview になります
func (s *Service) Create(ctx context.Context, actor model.Identity, bookingID string, rating int, text string) (*Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReviewService.Create")
	defer seg.Close(nil)

	if err := model.ValidateReviewInput(bookingID, rating, text); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleCustomer || booking.CustomerID != actor.UserID {
		return nil, fmt.Errorf("booking %s can only be reviewed by its customer: %w", bookingID, model.ErrUnauthorized)
	}
	if booking.Status != model.BookingStatusCompleted {
		return nil, model.NewValidationError("bookingId", fmt.Sprintf("booking is %s, not COMPLETED", booking.Status))
	}

	if _, err := s.reviews.GetByBookingID(ctx, bookingID); err == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, model.ErrDuplicateReview)
	} else if !errors.Is(err, model.ErrNotFound) {
		seg.Close(err)
		return nil, err
	}

	review := &model.Review{
		ID:           s.newID(),
		BookingID:    booking.ID,
		CustomerID:   booking.CustomerID,
		TechnicianID: booking.TechnicianID,
		Rating:       rating,
		Text:         text,
		CreatedAt:    s.clock().UTC(),
	}

	// 一意制約で重複を防ぎ、同じトランザクションで評価を書き戻す
	profile, err := s.reviews.CreateWithRating(ctx, review, Aggregate)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.NewReviewReceivedNotification(review))

	return &Result{Review: review, Technician: profile}, nil
}

// Technician は技術者のプロフィールと受け取ったレビューを返します
func (s *Service) Technician(ctx context.Context, technicianID string) (*TechnicianView, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReviewService.Technician")
	defer seg.Close(nil)

	profile, err := s.technicians.GetProfile(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByTechnician(ctx, technicianID)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return &TechnicianView{Profile: profile, Reviews: reviews}, nil
}

// RecomputeRating は管理者の要求で技術者の評価を全レビューから再計算します
func (s *Service) RecomputeRating(ctx context.Context, actor model.Identity, technicianID string) (*model.TechnicianProfile, error) {
	if actor.Role != model.RoleAdmin {
		return nil, fmt.Errorf("only admins can recompute ratings: %w", model.ErrUnauthorized)
	}
	return s.aggregator.Recompute(ctx, technicianID)
}
