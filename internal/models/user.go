package models

import (
	"time"

	"gorm.io/gorm"
)

// Roles recognised by the permission gate.
const (
	RoleAdmin    = "admin"
	RoleMerchant = "merchant"
	RoleUser     = "user"
)

type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	Password     string `gorm:"not null" json:"-"`
	Name         string `gorm:"not null"`
	Role         string `gorm:"default:'user'"`
	MerchantID   *uint  `gorm:"uniqueIndex;default:null"` // set for merchant accounts
	Status       string `gorm:"default:'active'"`
	LastLoginAt  time.Time
	TokenVersion int `gorm:"default:1"`
}
