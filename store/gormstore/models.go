package gormstore

import "time"

type Principal struct {
	ID           string     `gorm:"primaryKey"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         string     `gorm:"column:role;not null"`
	MFAEnabled   bool       `gorm:"column:mfa_enabled;default:false"`
	MFASecret    string     `gorm:"column:mfa_secret"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	IsVerified   bool       `gorm:"column:is_verified;default:false"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (Principal) TableName() string { return "principals" }

type BackupCode struct {
	ID          string     `gorm:"primaryKey"`
	PrincipalID string     `gorm:"column:principal_id;index;not null"`
	CodeHash    string     `gorm:"column:code_hash;not null"`
	IsUsed      bool       `gorm:"column:is_used;default:false"`
	UsedAt      *time.Time `gorm:"column:used_at"`
	UsedFrom    string     `gorm:"column:used_from"`
	GeneratedAt time.Time  `gorm:"column:generated_at;not null"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null"`
}

func (BackupCode) TableName() string { return "backup_codes" }

type Permission struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;uniqueIndex;not null"`
	ResourceType string    `gorm:"column:resource_type;not null"`
	Action       string    `gorm:"column:action;not null"`
	SystemOnly   bool      `gorm:"column:system_only;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Permission) TableName() string { return "permissions" }

type Role struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	Scope     string    `gorm:"column:scope;not null"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	IsSystem  bool      `gorm:"column:is_system;default:false"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Role) TableName() string { return "roles" }

type RolePermission struct {
	ID           string    `gorm:"primaryKey"`
	RoleID       string    `gorm:"column:role_id;index;not null"`
	PermissionID string    `gorm:"column:permission_id;index;not null"`
	GrantedBy    string    `gorm:"column:granted_by"`
	GrantedAt    time.Time `gorm:"column:granted_at"`
}

func (RolePermission) TableName() string { return "role_permissions" }

type UserRole struct {
	ID           string     `gorm:"primaryKey"`
	PrincipalID  string     `gorm:"column:principal_id;index;not null"`
	RoleID       string     `gorm:"column:role_id;not null"`
	ResourceType string     `gorm:"column:resource_type;not null"`
	ResourceID   *string    `gorm:"column:resource_id"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	GrantedAt    time.Time  `gorm:"column:granted_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
}

func (UserRole) TableName() string { return "user_roles" }
