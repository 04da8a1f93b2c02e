package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	MinRating = 1
	MaxRating = 5

	maxReviewTextLength = 2000
)

// DefaultAvgRating はレビューが一件もない技術者の平均評価です
const DefaultAvgRating = 0.0

// Review は完了した予約に対するレビューです
// booking_id には一意制約があり、更新経路はありません
type Review struct {
	ID           string    `db:"id" json:"id"`
	BookingID    string    `db:"booking_id" json:"bookingId"`
	CustomerID   string    `db:"customer_id" json:"customerId"`
	TechnicianID string    `db:"technician_id" json:"technicianId"`
	Rating       int       `db:"rating" json:"rating"`
	Text         string    `db:"text" json:"text"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// ValidateReviewInput はレビュー入力の形式を検証します
func ValidateReviewInput(bookingID string, rating int, text string) error {
	if bookingID == "" {
		return NewValidationError("bookingId", "is required")
	}
	if rating < MinRating || rating > MaxRating {
		return NewValidationError("rating", fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}
	if utf8.RuneCountInString(text) > maxReviewTextLength {
		return NewValidationError("text", fmt.Sprintf("must be at most %d characters", maxReviewTextLength))
	}
	return nil
}

// RatingAggregate は技術者のレビュー集合から導出される値です
type RatingAggregate struct {
	AvgRating float64
	TotalJobs int
}

// RatingAggregateFunc はレビュー評価の一覧から集計値を計算します
type RatingAggregateFunc func(ratings []int) RatingAggregate

// TechnicianProfile は技術者プロフィールのうち評価に関わる部分です
// AvgRating と TotalJobs は RatingAggregator によって上書きされます
type TechnicianProfile struct {
	UserID    string    `db:"user_id" json:"userId"`
	Bio       string    `db:"bio" json:"bio"`
	AvgRating float64   `db:"avg_rating" json:"avgRating"`
	TotalJobs int       `db:"total_jobs" json:"totalJobs"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewReviewReceivedNotification はレビュー投稿を技術者に知らせる通知を作成します
func NewReviewReceivedNotification(review *Review) NotificationEvent {
	return NotificationEvent{
		RecipientID: review.TechnicianID,
		Type:        NotificationTypeReviewReceived,
		Title:       "New review",
		Message:     fmt.Sprintf("You received a %d-star review.", review.Rating),
		Data: map[string]any{
			"reviewId":  review.ID,
			"bookingId": review.BookingID,
			"rating":    review.Rating,
		},
	}
}
