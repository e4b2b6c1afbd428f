package store

import (
	"context"
	"fmt"
	"strings"

	"skinscan/models"

	"gorm.io/gorm"
)

// UserRepo is the parameterized CRUD surface over the users table.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts u (whose Password must already be hashed). Emails are stored
// lower-cased; a duplicate yields ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Role == models.RoleDoctor {
		pending := models.ApprovalPending
		u.ApprovalStatus = &pending
	} else {
		u.ApprovalStatus = nil
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueConstraintError(err) { // race after the caller's pre-check
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// EmailExists is the optimistic pre-check used before any file is written.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email)).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *UserRepo) ListAll(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListPendingDoctors returns doctors still waiting for an admin decision.
func (r *UserRepo) ListPendingDoctors(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Where("role = ? AND approval_status = ?", models.RoleDoctor, models.ApprovalPending).
		Order("id").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateApprovalStatus sets the approval status of user id. Concurrent updates
// are last-write-wins.
func (r *UserRepo) UpdateApprovalStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("approval_status", status)
	if res.Error != nil {
		return fmt.Errorf("update approval status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new (already hashed) password.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
