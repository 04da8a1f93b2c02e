package model

import (
	"fmt"
	"time"
)

// BookingStatus は予約のステータスを表します
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAccepted   BookingStatus = "ACCEPTED"
	BookingStatusRejected   BookingStatus = "REJECTED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// ParseBookingStatus は文字列をBookingStatusに変換します
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch status := BookingStatus(s); status {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusRejected,
		BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled:
		return status, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown booking status %q", s))
}

// IsTerminal は遷移先が存在しないステータスかどうかを返します
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Booking は顧客と技術者の間の予約です
// price は作成時にサービスから複製され、以降は更新されません
type Booking struct {
	ID           string        `db:"id" json:"id"`
	CustomerID   string        `db:"customer_id" json:"customerId"`
	TechnicianID string        `db:"technician_id" json:"technicianId"`
	ServiceID    string        `db:"service_id" json:"serviceId"`
	Status       BookingStatus `db:"status" json:"status"`
	ScheduledAt  time.Time     `db:"scheduled_at" json:"scheduledAt"`
	Price        float64       `db:"price" json:"price"`
	Notes        string        `db:"notes" json:"notes"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsParty は指定ユーザーが予約の当事者かどうかを返します
func (b *Booking) IsParty(userID string) bool {
	return b.CustomerID == userID || b.TechnicianID == userID
}

// Counterparty は遷移を要求したユーザーに対する相手方のユーザーIDを返します
// キャンセル以外の遷移は技術者しか行えないため、常に顧客が通知先になります
func (b *Booking) Counterparty(actorID string, to BookingStatus) string {
	if to == BookingStatusCancelled && actorID == b.CustomerID {
		return b.TechnicianID
	}
	return b.CustomerID
}

// BookingFilter は一覧取得の絞り込み条件です
// CustomerID / TechnicianID が空の場合は絞り込みません
type BookingFilter struct {
	CustomerID   string
	TechnicianID string
	Status       *BookingStatus
}

// ScopeFor はロールに応じた絞り込み条件を作成します
func ScopeFor(identity Identity, status *BookingStatus) BookingFilter {
	filter := BookingFilter{Status: status}
	switch identity.Role {
	case RoleCustomer:
		filter.CustomerID = identity.UserID
	case RoleTechnician:
		filter.TechnicianID = identity.UserID
	}
	return filter
}

// TechnicianStats は完了済み予約から導出される技術者の集計値です
type TechnicianStats struct {
	TechnicianID  string  `db:"technician_id" json:"technicianId"`
	TotalEarnings float64 `db:"total_earnings" json:"totalEarnings"`
	CompletedJobs int     `db:"completed_jobs" json:"completedJobs"`
}

// ServiceListing はカタログ上のサービスです
// 予約作成時の価格スナップショットにのみ参照されます
type ServiceListing struct {
	ID           string  `db:"id"`
	TechnicianID string  `db:"technician_id"`
	Title        string  `db:"title"`
	Price        float64 `db:"price"`
	IsActive     bool    `db:"is_active"`
}
