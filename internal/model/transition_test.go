package model

import (
	"errors"
	"testing"
)

var allStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusRejected,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		from    BookingStatus
		to      BookingStatus
		wantErr error
	}{
		{name: "技術者が承諾", role: RoleTechnician, from: BookingStatusPending, to: BookingStatusAccepted},
		{name: "技術者が拒否", role: RoleTechnician, from: BookingStatusPending, to: BookingStatusRejected},
		{name: "技術者が作業開始", role: RoleTechnician, from: BookingStatusAccepted, to: BookingStatusInProgress},
		{name: "技術者が完了", role: RoleTechnician, from: BookingStatusInProgress, to: BookingStatusCompleted},
		{name: "顧客がPENDINGをキャンセル", role: RoleCustomer, from: BookingStatusPending, to: BookingStatusCancelled},
		{name: "顧客がACCEPTEDをキャンセル", role: RoleCustomer, from: BookingStatusAccepted, to: BookingStatusCancelled},
		{name: "技術者がACCEPTEDをキャンセル", role: RoleTechnician, from: BookingStatusAccepted, to: BookingStatusCancelled},
		{name: "顧客は承諾できない", role: RoleCustomer, from: BookingStatusPending, to: BookingStatusAccepted, wantErr: ErrUnauthorized},
		{name: "顧客は完了できない", role: RoleCustomer, from: BookingStatusInProgress, to: BookingStatusCompleted, wantErr: ErrUnauthorized},
		{name: "管理者はキャンセルできない", role: RoleAdmin, from: BookingStatusPending, to: BookingStatusCancelled, wantErr: ErrUnauthorized},
		{name: "作業中はキャンセルできない", role: RoleCustomer, from: BookingStatusInProgress, to: BookingStatusCancelled, wantErr: ErrInvalidTransition},
		{name: "PENDINGから完了へは飛べない", role: RoleTechnician, from: BookingStatusPending, to: BookingStatusCompleted, wantErr: ErrInvalidTransition},
		{name: "同じステータスへの遷移", role: RoleTechnician, from: BookingStatusAccepted, to: BookingStatusAccepted, wantErr: ErrInvalidTransition},
		{name: "完了済みは終端", role: RoleTechnician, from: BookingStatusCompleted, to: BookingStatusCompleted, wantErr: ErrInvalidTransition},
		{name: "キャンセル済みは終端", role: RoleCustomer, from: BookingStatusCancelled, to: BookingStatusCancelled, wantErr: ErrInvalidTransition},
		{name: "拒否済みは終端", role: RoleTechnician, from: BookingStatusRejected, to: BookingStatusAccepted, wantErr: ErrInvalidTransition},
		{name: "表にない遷移は顧客でもInvalidTransition", role: RoleCustomer, from: BookingStatusAccepted, to: BookingStatusPending, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.role, tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckTransition() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckTransition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckTransition_TerminalStatesRejectEverything(t *testing.T) {
	for _, from := range allStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range allStatuses {
			for _, role := range []Role{RoleCustomer, RoleTechnician, RoleAdmin} {
				if err := CheckTransition(role, from, to); !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("CheckTransition(%s, %s, %s) error = %v, want ErrInvalidTransition", role, from, to, err)
				}
			}
		}
	}
}

// 許可される辺は6本、ロールとの組では8通りです
func TestCheckTransition_AllowedEdgeCount(t *testing.T) {
	allowed := 0
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			for _, role := range []Role{RoleCustomer, RoleTechnician, RoleAdmin} {
				if CheckTransition(role, from, to) == nil {
					allowed++
				}
			}
		}
	}
	// 技術者4本 + キャンセル2本×2ロール
	if allowed != 8 {
		t.Errorf("allowed (role, from, to) triples = %d, want 8", allowed)
	}
}

func TestBookingCounterparty(t *testing.T) {
	b := &Booking{CustomerID: "cust", TechnicianID: "tech"}

	tests := []struct {
		name  string
		actor string
		to    BookingStatus
		want  string
	}{
		{name: "顧客のキャンセルは技術者へ", actor: "cust", to: BookingStatusCancelled, want: "tech"},
		{name: "技術者のキャンセルは顧客へ", actor: "tech", to: BookingStatusCancelled, want: "cust"},
		{name: "承諾は顧客へ", actor: "tech", to: BookingStatusAccepted, want: "cust"},
		{name: "完了は顧客へ", actor: "tech", to: BookingStatusCompleted, want: "cust"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Counterparty(tt.actor, tt.to); got != tt.want {
				t.Errorf("Counterparty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBookingStatus(t *testing.T) {
	if _, err := ParseBookingStatus("DONE"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseBookingStatus(DONE) error = %v, want ErrValidation", err)
	}
	got, err := ParseBookingStatus("IN_PROGRESS")
	if err != nil || got != BookingStatusInProgress {
		t.Errorf("ParseBookingStatus(IN_PROGRESS) = %v, %v", got, err)
	}
}

func TestScopeFor(t *testing.T) {
	status := BookingStatusPending
	tests := []struct {
		name     string
		identity Identity
		want     BookingFilter
	}{
		{name: "顧客は自分の予約", identity: Identity{UserID: "u1", Role: RoleCustomer}, want: BookingFilter{CustomerID: "u1", Status: &status}},
		{name: "技術者は担当の予約", identity: Identity{UserID: "u2", Role: RoleTechnician}, want: BookingFilter{TechnicianID: "u2", Status: &status}},
		{name: "管理者は全件", identity: Identity{UserID: "u3", Role: RoleAdmin}, want: BookingFilter{Status: &status}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScopeFor(tt.identity, &status)
			if got.CustomerID != tt.want.CustomerID || got.TechnicianID != tt.want.TechnicianID || got.Status != tt.want.Status {
				t.Errorf("ScopeFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
