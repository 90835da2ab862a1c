package domain

import (
	"errors"
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Tier decides refill and watermark policy for a user.
type Tier string

const (
	TierFree  Tier = "free"
	TierMicro Tier = "micro"
	TierMacro Tier = "macro"
)

// Watermarked reports whether media generated for this tier carries a watermark.
func (t Tier) Watermarked() bool {
	return t == TierFree || t == ""
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User models an authenticated actor and the subject of a credit ledger.
// Credits is only ever changed through the ledger.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Tier         Tier      `json:"tier"`
	Credits      int64     `json:"credits"`
	Frozen       bool      `json:"frozen,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
