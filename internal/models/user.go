package models

import "time"

// Role enumerates the access levels recognised by the portal.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsAdmin reports whether the role may use the admin console.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// AdminRoles lists every role that receives admin fan-out notifications.
var AdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

// UserProfile mirrors an authenticated account inside the portal database.
type UserProfile struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Email     string    `gorm:"column:email;size:320;index" json:"email"`
	FullName  string    `gorm:"column:full_name;size:320" json:"full_name"`
	Role      Role      `gorm:"column:role;size:32;not null;default:'user';index" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// DisplayName falls back to the email when no name was captured.
func (u UserProfile) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
