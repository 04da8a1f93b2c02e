package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeBookingCreated は技術者への新規予約の通知を表します
	NotificationTypeBookingCreated NotificationType = "BOOKING_CREATED"
	// NotificationTypeBookingAccepted は顧客への予約承諾の通知を表します
	NotificationTypeBookingAccepted NotificationType = "BOOKING_ACCEPTED"
	// NotificationTypeBookingRejected は顧客への予約拒否の通知を表します
	NotificationTypeBookingRejected   NotificationType = "BOOKING_REJECTED"
	NotificationTypeBookingInProgress NotificationType = "BOOKING_IN_PROGRESS"
	NotificationTypeBookingCompleted  NotificationType = "BOOKING_COMPLETED"
	NotificationTypeBookingCancelled  NotificationType = "BOOKING_CANCELLED"
	// NotificationTypeReviewReceived は技術者へのレビュー投稿の通知を表します
	NotificationTypeReviewReceived NotificationType = "REVIEW_RECEIVED"
)

// DefaultNotificationRetention は通知の保持期間です
const DefaultNotificationRetention = 30 * 24 * time.Hour

// Notification は通知のドメインモデルです
// データベースに永続化される通知レコードと一致しています
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Data        types.JSONText   `db:"data" json:"data"`
	IsRead      bool             `db:"is_read" json:"isRead"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
	ExpiresAt   time.Time        `db:"expires_at" json:"expiresAt"`
}

// NotificationEvent は通知送信の入力です
type NotificationEvent struct {
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	Data        any
}

// ToNotification は通知イベントを永続化用のNotificationに変換します
func (e NotificationEvent) ToNotification(id string, now time.Time, retention time.Duration) (*Notification, error) {
	if e.RecipientID == "" {
		return nil, NewValidationError("recipientId", "is required")
	}
	if e.Type == "" {
		return nil, NewValidationError("type", "is required")
	}

	data := types.JSONText("{}")
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification data: %w", err)
		}
		data = types.JSONText(raw)
	}

	return &Notification{
		ID:          id,
		RecipientID: e.RecipientID,
		Type:        e.Type,
		Title:       e.Title,
		Message:     e.Message,
		Data:        data,
		IsRead:      false,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(retention),
	}, nil
}

// BookingEventData は予約関連通知のペイロードです
type BookingEventData struct {
	BookingID      string        `json:"bookingId"`
	Status         BookingStatus `json:"status"`
	PreviousStatus BookingStatus `json:"previousStatus,omitempty"`
	ActorID        string        `json:"actorId"`
	ScheduledAt    time.Time     `json:"scheduledAt"`
}

// NewBookingStatusNotification は予約のステータス遷移から通知を作成します
func NewBookingStatusNotification(booking *Booking, from BookingStatus, actorID string) NotificationEvent {
	recipient := booking.Counterparty(actorID, booking.Status)
	schedule := booking.ScheduledAt.Format("2006-01-02 15:04")

	var (
		typ     NotificationType
		title   string
		message string
	)
	switch booking.Status {
	case BookingStatusAccepted:
		typ, title = NotificationTypeBookingAccepted, "Booking accepted"
		message = fmt.Sprintf("Your booking for %s has been accepted.", schedule)
	case BookingStatusRejected:
		typ, title = NotificationTypeBookingRejected, "Booking rejected"
		message = fmt.Sprintf("Your booking for %s has been rejected.", schedule)
	case BookingStatusInProgress:
		typ, title = NotificationTypeBookingInProgress, "Job started"
		message = "The technician has started working on your booking."
	case BookingStatusCompleted:
		typ, title = NotificationTypeBookingCompleted, "Job completed"
		message = "Your booking has been completed. You can now leave a review."
	default:
		typ, title = NotificationTypeBookingCancelled, "Booking cancelled"
		message = fmt.Sprintf("The booking for %s has been cancelled.", schedule)
	}

	return NotificationEvent{
		RecipientID: recipient,
		Type:        typ,
		Title:       title,
		Message:     message,
		Data: BookingEventData{
			BookingID:      booking.ID,
			Status:         booking.Status,
			PreviousStatus: from,
			ActorID:        actorID,
			ScheduledAt:    booking.ScheduledAt,
		},
	}
}

// NewBookingCreatedNotification は新規予約を技術者に知らせる通知を作成します
func NewBookingCreatedNotification(booking *Booking, serviceTitle string) NotificationEvent {
	return NotificationEvent{
		RecipientID: booking.TechnicianID,
		Type:        NotificationTypeBookingCreated,
		Title:       "New booking request",
		Message: fmt.Sprintf("New booking for %s on %s.",
			serviceTitle, booking.ScheduledAt.Format("2006-01-02 15:04")),
		Data: BookingEventData{
			BookingID:   booking.ID,
			Status:      booking.Status,
			ActorID:     booking.CustomerID,
			ScheduledAt: booking.ScheduledAt,
		},
	}
}
