package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftsec/authcore"
	"github.com/craftsec/authcore/rbac"
)

// ErrNotFound is returned when a lookup matches no row. Principal lookups
// additionally wrap authcore.ErrPrincipalNotFound so the engine can tell a
// miss from a failing database.
var ErrNotFound = errors.New("gormstore: not found")

// Store implements authcore.PrincipalStore and rbac.Store on a gorm.DB.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: db is required")
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates the backing tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&Principal{},
		&BackupCode{},
		&Permission{},
		&Role{},
		&RolePermission{},
		&UserRole{},
	)
}

func toRecord(p *Principal) *authcore.PrincipalRecord {
	return &authcore.PrincipalRecord{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		MFAEnabled:   p.MFAEnabled,
		MFASecret:    p.MFASecret,
		IsActive:     p.IsActive,
		IsVerified:   p.IsVerified,
		LastLoginAt:  p.LastLoginAt,
	}
}

func (s *Store) GetPrincipalByEmail(ctx context.Context, email string) (*authcore.PrincipalRecord, error) {
	var p Principal
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Join(ErrNotFound, authcore.ErrPrincipalNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toRecord(&p), nil
}

func (s *Store) GetPrincipalByID(ctx context.Context, principalID string) (*authcore.PrincipalRecord, error) {
	var p Principal
	err := s.db.WithContext(ctx).Where("id = ?", principalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Join(ErrNotFound, authcore.ErrPrincipalNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toRecord(&p), nil
}

func (s *Store) TouchLogin(ctx context.Context, principalID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&Principal{}).
		Where("id = ?", principalID).
		Update("last_login_at", at).Error
}

func (s *Store) EnableMFA(ctx context.Context, principalID, secret string, codes []authcore.BackupCodeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Principal{}).
			Where("id = ?", principalID).
			Updates(map[string]interface{}{
				"mfa_enabled": true,
				"mfa_secret":  secret,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("principal_id = ?", principalID).Delete(&BackupCode{}).Error; err != nil {
			return err
		}
		return tx.Create(toRows(principalID, codes)).Error
	})
}

func (s *Store) DisableMFA(ctx context.Context, principalID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Principal{}).
			Where("id = ?", principalID).
			Updates(map[string]interface{}{
				"mfa_enabled": false,
				"mfa_secret":  "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("principal_id = ?", principalID).Delete(&BackupCode{}).Error
	})
}

func (s *Store) UnusedBackupCodes(ctx context.Context, principalID string, limit int) ([]authcore.BackupCodeRecord, error) {
	var rows []BackupCode
	err := s.db.WithContext(ctx).
		Where("principal_id = ? AND is_used = ? AND expires_at > ?", principalID, false, time.Now().UTC()).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]authcore.BackupCodeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, authcore.BackupCodeRecord{
			ID:          row.ID,
			PrincipalID: row.PrincipalID,
			CodeHash:    row.CodeHash,
			IsUsed:      row.IsUsed,
			UsedAt:      row.UsedAt,
			UsedFrom:    row.UsedFrom,
			GeneratedAt: row.GeneratedAt,
			ExpiresAt:   row.ExpiresAt,
		})
	}
	return records, nil
}

func (s *Store) CountBackupCodes(ctx context.Context, principalID string) (int, int, error) {
	var total, used int64
	if err := s.db.WithContext(ctx).
		Model(&BackupCode{}).
		Where("principal_id = ?", principalID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).
		Model(&BackupCode{}).
		Where("principal_id = ? AND is_used = ?", principalID, true).
		Count(&used).Error; err != nil {
		return 0, 0, err
	}
	return int(total), int(used), nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, principalID string, codes []authcore.BackupCodeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("principal_id = ?", principalID).Delete(&BackupCode{}).Error; err != nil {
			return err
		}
		return tx.Create(toRows(principalID, codes)).Error
	})
}

// ConsumeBackupCode flips a row from unused to used. The WHERE clause on
// is_used makes the write a compare-and-swap: under concurrent attempts on the
// same row exactly one caller observes RowsAffected == 1.
func (s *Store) ConsumeBackupCode(ctx context.Context, codeID, origin string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&BackupCode{}).
		Where("id = ? AND is_used = ?", codeID, false).
		Updates(map[string]interface{}{
			"is_used":   true,
			"used_at":   at,
			"used_from": origin,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func toRows(principalID string, codes []authcore.BackupCodeRecord) []BackupCode {
	rows := make([]BackupCode, 0, len(codes))
	for _, c := range codes {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows = append(rows, BackupCode{
			ID:          id,
			PrincipalID: principalID,
			CodeHash:    c.CodeHash,
			IsUsed:      false,
			GeneratedAt: c.GeneratedAt,
			ExpiresAt:   c.ExpiresAt,
		})
	}
	return rows
}

// ActiveAssignments implements rbac.Store.
func (s *Store) ActiveAssignments(ctx context.Context, principalID string) ([]rbac.Assignment, error) {
	var rows []UserRole
	err := s.db.WithContext(ctx).
		Where("principal_id = ? AND is_active = ?", principalID, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	assignments := make([]rbac.Assignment, 0, len(rows))
	for _, row := range rows {
		var resourceID string
		if row.ResourceID != nil {
			resourceID = *row.ResourceID
		}
		assignments = append(assignments, rbac.Assignment{
			ID:           row.ID,
			PrincipalID:  row.PrincipalID,
			RoleID:       row.RoleID,
			ResourceType: rbac.ResourceType(row.ResourceType),
			ResourceID:   resourceID,
			IsActive:     row.IsActive,
			GrantedAt:    row.GrantedAt,
			ExpiresAt:    row.ExpiresAt,
		})
	}
	return assignments, nil
}

// PermissionNames implements rbac.Store. Grants through inactive roles do not
// count.
func (s *Store) PermissionNames(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	var names []string
	err := s.db.WithContext(ctx).
		Table("permissions").
		Select("permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("role_permissions.role_id IN ? AND roles.is_active = ?", roleIDs, true).
		Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// SaveAssignment persists a validated role assignment.
func (s *Store) SaveAssignment(ctx context.Context, a *rbac.Assignment) error {
	if a == nil {
		return errors.New("gormstore: assignment is required")
	}
	row := UserRole{
		ID:           a.ID,
		PrincipalID:  a.PrincipalID,
		RoleID:       a.RoleID,
		ResourceType: string(a.ResourceType),
		IsActive:     a.IsActive,
		GrantedAt:    a.GrantedAt,
		ExpiresAt:    a.ExpiresAt,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
		a.ID = row.ID
	}
	if a.ResourceID != "" {
		row.ResourceID = &a.ResourceID
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RevokeAssignment soft-disables an assignment, keeping it for history.
func (s *Store) RevokeAssignment(ctx context.Context, assignmentID string) error {
	res := s.db.WithContext(ctx).
		Model(&UserRole{}).
		Where("id = ?", assignmentID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
