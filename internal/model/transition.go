package model

import "fmt"

// CheckTransition は (ロール, 遷移元, 遷移先) の組が許可されているかを検証します
//
//	customer / technician : PENDING, ACCEPTED -> CANCELLED
//	technician            : PENDING -> ACCEPTED | REJECTED
//	technician            : ACCEPTED -> IN_PROGRESS
//	technician            : IN_PROGRESS -> COMPLETED
//
// 表にない組は ErrInvalidTransition、ロールが行に合わない場合は ErrUnauthorized を返します。
func CheckTransition(role Role, from, to BookingStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}

	var allowed []Role
	switch {
	case to == BookingStatusCancelled && (from == BookingStatusPending || from == BookingStatusAccepted):
		allowed = []Role{RoleCustomer, RoleTechnician}
	case from == BookingStatusPending && to == BookingStatusAccepted,
		from == BookingStatusPending && to == BookingStatusRejected,
		from == BookingStatusAccepted && to == BookingStatusInProgress,
		from == BookingStatusInProgress && to == BookingStatusCompleted:
		allowed = []Role{RoleTechnician}
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot move booking %s -> %s", ErrUnauthorized, role, from, to)
}
