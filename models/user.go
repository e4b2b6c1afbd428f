package models

import (
	"time"
)

// Roles a user can hold.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Doctor approval lifecycle. Non-doctors carry a nil ApprovalStatus.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// User model. Password holds the bcrypt hash and is never serialized.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	Role           string    `gorm:"size:16;not null;default:patient;index" json:"role"`
	DegreePath     *string   `gorm:"size:512" json:"degree_path"`
	DegreeText     *string   `gorm:"type:text" json:"degree_text,omitempty"`
	ApprovalStatus *string   `gorm:"size:16;index" json:"approval_status"`
}

// CanLogin reports whether the approval gate lets this user sign in.
func (u *User) CanLogin() bool {
	if u.Role != RoleDoctor {
		return true
	}
	return u.ApprovalStatus != nil && *u.ApprovalStatus == ApprovalApproved
}
