package models

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

type UserRole string

const (
	UserRoleOwner  UserRole = "Owner"
	UserRoleAdmin  UserRole = "Admin"
	UserRoleMember UserRole = "Member"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleOwner || r == UserRoleAdmin || r == UserRoleMember
}

type User struct {
	gorm.Model

	TenantID       uint   `gorm:"index;not null"`
	Email          string `gorm:"index;not null"`
	FirstName      string
	LastName       string
	Title          string
	Role           UserRole `gorm:"not null"`
	EmailConfirmed bool
	LastSeenAt     *time.Time
}

func (u User) GoString() string {
	return fmt.Sprintf("{ID: %d, TenantID: %d, Email: %s, Role: %s}", u.ID, u.TenantID, u.Email, u.Role)
}

func (u User) IsOwner() bool {
	return u.Role == UserRoleOwner
}
