package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/notification"
)

// StateMachine は予約ステータスの遷移を検証して適用します
type StateMachine struct {
	repo     repository.BookingRepository
	notifier notification.Notifier
	clock    func() time.Time
}

// NewStateMachine は新しいStateMachineを作成します
func NewStateMachine(repo repository.BookingRepository, notifier notification.Notifier) *StateMachine {
	return &StateMachine{
		repo:     repo,
		notifier: notifier,
		clock:    time.Now,
	}
}

// Transition は予約を target に遷移させ、相手方に一度だけ通知します
//
// 書き込みは読み取り時のステータスを条件に行われ、競合した場合は ErrConflict を返します。
// 再試行は呼び出し元の判断に任せます。
func (m *StateMachine) Transition(ctx context.Context, bookingID string, actor model.Identity, target model.BookingStatus) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingStateMachine.Transition")
	defer seg.Close(nil)

	current, err := m.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := checkOwnership(current, actor); err != nil {
		return nil, err
	}
	if err := model.CheckTransition(actor.Role, current.Status, target); err != nil {
		return nil, err
	}

	updated, err := m.repo.UpdateStatusIfMatch(ctx, bookingID, current.Status, target, m.clock().UTC())
	if err != nil {
		return nil, err
	}

	m.notifier.Notify(ctx, model.NewBookingStatusNotification(updated, current.Status, actor.UserID))

	return updated, nil
}

func checkOwnership(booking *model.Booking, actor model.Identity) error {
	switch actor.Role {
	case model.RoleCustomer:
		if booking.CustomerID != actor.UserID {
			return fmt.Errorf("booking %s is not owned by %s: %w", booking.ID, actor.UserID, model.ErrUnauthorized)
		}
	case model.RoleTechnician:
		if booking.TechnicianID != actor.UserID {
			return fmt.Errorf("booking %s is not assigned to %s: %w", booking.ID, actor.UserID, model.ErrUnauthorized)
		}
	}
	return nil
}
