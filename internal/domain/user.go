package domain

import (
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleEmployee   Role = "employee"
)

type User struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"companyId"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// Actor 是发起请求的用户，由上游的认证服务通过令牌提供
type Actor struct {
	UserID    int64
	CompanyID int64
	Role      Role
}
