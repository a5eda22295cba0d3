package core

import "time"

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"userId" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	Resource   string    `json:"resource" db:"resource"`
	ResourceID *string   `json:"resourceId,omitempty" db:"resource_id"`
	Details    JSONB     `json:"details" db:"details"`
	IPAddress  *string   `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent  *string   `json:"userAgent,omitempty" db:"user_agent"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
