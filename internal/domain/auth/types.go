package auth

import "time"

// Config drives token issuance.
type Config struct {
	Secret          string
	Issuer          string
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration
}

// Member is a household account allowed to change preferences and control playback.
type Member struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Session is returned by login and refresh.
type Session struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Member       MemberView `json:"member"`
}

// MemberView trims sensitive fields.
type MemberView struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Claims are extracted from a verified token.
type Claims struct {
	MemberID  int64
	Email     string
	TokenType string
	ExpiresAt time.Time
}
