package main

import (
	"time"
)

// UncategorizedID is the sentinel category quests fall back to when their
// category is deleted.
const UncategorizedID = "unCategory"

const uncategorizedName = "Uncategorized"

// --- Quests ---

type Quest struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CategoryID  string    `gorm:"index;size:64;not null" json:"categoryId"`
	Category    *Category `gorm:"foreignKey:CategoryID" json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	// CategoryName is the display label. The spreadsheet stores only this.
	CategoryName string `gorm:"-" json:"category"`
	// Extra holds unknown spreadsheet columns; never written back.
	Extra map[string]string `gorm:"-" json:"extra,omitempty"`
}

type Category struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// --- Users & sessions ---

type User struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Name          *string    `json:"name,omitempty"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         *string    `json:"image,omitempty"`
	PasswordHash  string     `json:"-"`
	Role          string     `gorm:"size:16;not null;default:user" json:"role"` // "user" | "admin"
	CreatedAt     time.Time  `json:"-"`
	UpdatedAt     time.Time  `json:"-"`
}

// Account links a user to an external OAuth identity.
type Account struct {
	ID                string `gorm:"primaryKey;size:36"`
	UserID            string `gorm:"index;size:36;not null"`
	Provider          string `gorm:"size:32;not null;uniqueIndex:idx_provider_account"`
	ProviderAccountID string `gorm:"not null;uniqueIndex:idx_provider_account"`
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Session struct {
	ID           string    `gorm:"primaryKey;size:36"`
	SessionToken string    `gorm:"uniqueIndex;size:36;not null"`
	UserID       string    `gorm:"index;size:36;not null"`
	Expires      time.Time `gorm:"not null"`
	CreatedAt    time.Time
}

// VerificationToken is a short-lived one-shot token (OAuth state).
type VerificationToken struct {
	Identifier string    `gorm:"primaryKey;size:64"`
	Token      string    `gorm:"primaryKey;size:64"`
	Expires    time.Time `gorm:"not null"`
}
