package model

import "fmt"

// Role はユーザーのロールです
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole は文字列をRoleに変換します
func ParseRole(s string) (Role, error) {
	switch role := Role(s); role {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity は認証済みのリクエスト主体です
type Identity struct {
	UserID string
	Role   Role
}
