package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Service exposes the member account workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (MemberView, error)
	Login(ctx context.Context, req LoginRequest) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
	Profile(ctx context.Context, memberID int64) (MemberView, error)
}

type service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	maxDisplayName = 32
	minPassword    = 8
)

// NewService constructs a Service instance.
func NewService(cfg Config, repo Repository, logger *slog.Logger) Service {
	if cfg.Issuer == "" {
		cfg.Issuer = "prayer-companion"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &service{
		cfg:    cfg,
		repo:   repo,
		logger: logger.With("component", "auth.service"),
		now:    time.Now,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (MemberView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return MemberView{}, apperrors.Wrap("invalid_input", "invalid email address", err)
	}
	name, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return MemberView{}, apperrors.Wrap("invalid_input", err.Error(), nil)
	}
	if len(req.Password) < minPassword {
		return MemberView{}, apperrors.Wrap("invalid_input", fmt.Sprintf("password must be at least %d characters", minPassword), nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return MemberView{}, apperrors.Wrap("auth_error", "failed to hash password", err)
	}
	member, err := s.repo.Create(ctx, email, name, string(hashed))
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return MemberView{}, apperrors.Wrap("email_exists", "email already registered", err)
		}
		return MemberView{}, apperrors.Wrap("auth_error", "failed to create member", err)
	}
	s.logger.Info("member registered", "member_id", member.ID)
	return toView(member), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return Session{}, apperrors.Wrap("invalid_input", "invalid email address", err)
	}
	if strings.TrimSpace(req.Password) == "" {
		return Session{}, apperrors.Wrap("invalid_input", "password cannot be empty", nil)
	}
	member, found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Session{}, apperrors.Wrap("auth_error", "failed to fetch member", err)
	}
	if !found {
		return Session{}, apperrors.Wrap("invalid_credentials", "invalid email or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)); err != nil {
		return Session{}, apperrors.Wrap("invalid_credentials", "invalid email or password", nil)
	}
	return s.issue(member)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return Session{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return Session{}, apperrors.Wrap("invalid_token", "token type mismatch", nil)
	}
	member, found, err := s.repo.GetByID(ctx, claims.MemberID)
	if err != nil {
		return Session{}, apperrors.Wrap("auth_error", "failed to load member", err)
	}
	if !found {
		return Session{}, apperrors.Wrap("member_not_found", "member not found", nil)
	}
	return s.issue(member)
}

func (s *service) ValidateToken(_ context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap("invalid_token", "token missing", nil)
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.Wrap("invalid_token", "token type mismatch", nil)
	}
	return claims, nil
}

func (s *service) Profile(ctx context.Context, memberID int64) (MemberView, error) {
	member, found, err := s.repo.GetByID(ctx, memberID)
	if err != nil {
		return MemberView{}, apperrors.Wrap("auth_error", "failed to load profile", err)
	}
	if !found {
		return MemberView{}, apperrors.Wrap("member_not_found", "member not found", nil)
	}
	return toView(member), nil
}

func (s *service) issue(member Member) (Session, error) {
	now := s.now()
	access, err := s.sign(member, tokenTypeAccess, now, s.cfg.TokenTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.sign(member, tokenTypeRefresh, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.cfg.TokenTTL).UTC(),
		Member:       toView(member),
	}, nil
}

func (s *service) sign(member Member, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		MemberID:  member.ID,
		Email:     member.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(member.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, apperrors.Wrap("invalid_token", "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap("invalid_token", "token invalid", nil)
	}
	return Claims{
		MemberID:  claims.MemberID,
		Email:     claims.Email,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func toView(member Member) MemberView {
	return MemberView{
		ID:          member.ID,
		Email:       member.Email,
		DisplayName: member.DisplayName,
		CreatedAt:   member.CreatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func normalizeDisplayName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", errors.New("display name cannot be empty")
	}
	if len([]rune(name)) > maxDisplayName {
		return "", fmt.Errorf("display name cannot exceed %d characters", maxDisplayName)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' {
			return "", errors.New("display name may only contain letters, spaces, hyphens and apostrophes")
		}
	}
	return name, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	MemberID  int64  `json:"mid"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
}
