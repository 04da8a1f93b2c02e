package booking

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/notification"
)

const maxNotesLength = 1000

// CreateInput は予約作成の入力です
type CreateInput struct {
	ServiceID   string
	ScheduledAt time.Time
	Notes       string
}

// Service は予約に関する操作をまとめます
type Service struct {
	repo     repository.BookingRepository
	catalog  repository.CatalogRepository
	machine  *StateMachine
	sweeper  *Sweeper
	notifier notification.Notifier
	clock    func() time.Time
	newID    func() string
}

// NewService は新しいServiceを作成します
func NewService(repo repository.BookingRepository, catalog repository.CatalogRepository, notifier notification.Notifier) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		machine:  NewStateMachine(repo, notifier),
		sweeper:  NewSweeper(repo),
		notifier: notifier,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

// Create は顧客の予約を作成します
// 価格は作成時点のサービス価格を複製します
func (s *Service) Create(ctx context.Context, actor model.Identity, input CreateInput) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.Create")
	defer seg.Close(nil)

	if actor.Role != model.RoleCustomer {
		return nil, fmt.Errorf("only customers can create bookings: %w", model.ErrUnauthorized)
	}

	now := s.clock().UTC()
	if err := validateCreateInput(input, now); err != nil {
		return nil, err
	}

	listing, err := s.catalog.GetServiceByID(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, model.NewValidationError("serviceId", "service is not active")
	}

	booking := &model.Booking{
		ID:           s.newID(),
		CustomerID:   actor.UserID,
		TechnicianID: listing.TechnicianID,
		ServiceID:    listing.ID,
		Status:       model.BookingStatusPending,
		ScheduledAt:  input.ScheduledAt.UTC(),
		Price:        listing.Price,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		seg.Close(err)
		return nil, err
	}

	s.notifier.Notify(ctx, model.NewBookingCreatedNotification(booking, listing.Title))

	return booking, nil
}

func validateCreateInput(input CreateInput, now time.Time) error {
	if input.ServiceID == "" {
		return model.NewValidationError("serviceId", "is required")
	}
	if input.ScheduledAt.IsZero() {
		return model.NewValidationError("scheduledAt", "is required")
	}
	if !input.ScheduledAt.After(now) {
		return model.NewValidationError("scheduledAt", "must be in the future")
	}
	if utf8.RuneCountInString(input.Notes) > maxNotesLength {
		return model.NewValidationError("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	return nil
}

// List はロールに応じた範囲の予約を返します
// 返却前に期限切れのPENDING予約をキャンセルします
func (s *Service) List(ctx context.Context, actor model.Identity, status *model.BookingStatus) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.List")
	defer seg.Close(nil)

	if _, err := s.sweeper.Sweep(ctx, s.clock().UTC()); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to sweep stale bookings: %w", err)
	}

	bookings, err := s.repo.List(ctx, model.ScopeFor(actor, status))
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return bookings, nil
}

// Get は当事者または管理者に予約を返します
func (s *Service) Get(ctx context.Context, actor model.Identity, bookingID string) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.Get")
	defer seg.Close(nil)

	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && !booking.IsParty(actor.UserID) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, model.ErrUnauthorized)
	}
	return booking, nil
}

// Transition は予約のステータスを遷移させます
func (s *Service) Transition(ctx context.Context, actor model.Identity, bookingID string, target model.BookingStatus) (*model.Booking, error) {
	return s.machine.Transition(ctx, bookingID, actor, target)
}

// TechnicianStats は技術者本人または管理者に完了済み予約の集計を返します
func (s *Service) TechnicianStats(ctx context.Context, actor model.Identity, technicianID string) (*model.TechnicianStats, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.TechnicianStats")
	defer seg.Close(nil)

	if actor.Role != model.RoleAdmin && actor.UserID != technicianID {
		return nil, fmt.Errorf("stats of %s: %w", technicianID, model.ErrUnauthorized)
	}
	return s.repo.GetTechnicianStats(ctx, technicianID)
}
