package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	IsMember     bool   `gorm:"not null;default:false"`
	PlanType     string `gorm:"not null;default:Novice"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID         string `gorm:"primaryKey"`
	Title      string `gorm:"not null"`
	Author     string `gorm:"not null"`
	CoverURL   string
	ContentKey string
	PriceMinor int64  `gorm:"not null"`
	IsPremium  bool   `gorm:"not null;default:false"`
	Status     string
	Rating     int
	Review     string
	Attributes datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

// PurchaseModel is one entitlement edge. The composite primary key makes the
// insert the single serialization point for concurrent duplicate grants.
type PurchaseModel struct {
	UserID    string    `gorm:"primaryKey"`
	BookID    string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"not null"`
	Subject   string
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
