package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Authentication method references (RFC 8176).
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
)

var ErrTOTPAlreadyEnabled = errors.New("TOTP already enabled for this user")

// UserService is the account side of the login page.
type UserService struct {
	Store store.Store

	// Issuer names the IdP in authenticator apps.
	Issuer string
	Now    func() time.Time
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Username      string
	Name          string
	Email         string
	EmailVerified bool
	Password      string
	TOTPSecret    string
}

// CreateUser hashes the password and stores a new active user.
func (s *UserService) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	l := slogx.FromContext(ctx)

	username := strings.TrimSpace(nu.Username)
	if username == "" || nu.Password == "" {
		return domain.User{}, ErrInvalidRequest
	}

	hash, err := cryptox.HashPassword(nu.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := clock(s.Now)
	u := domain.User{
		ID:            idx.New().String(),
		Username:      username,
		Name:          nu.Name,
		Email:         nu.Email,
		EmailVerified: nu.EmailVerified,
		PasswordHash:  hash,
		TOTPSecret:    nu.TOTPSecret,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}

	l.Info("user created", slog.String("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// Authenticate checks a username and password, plus a TOTP code when the
// user has one enrolled. It returns the user and the methods used.
// ErrOTPRequired asks the caller to collect the code and try again.
func (s *UserService) Authenticate(ctx context.Context, username, password, otpCode string) (*domain.User, []string, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login failed", slog.String("username", u.Username))
		return nil, nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, nil, ErrInvalidCredentials
	}

	amr := []string{AMRPassword}
	if u.HasTOTP() {
		otpCode = strings.TrimSpace(otpCode)
		if otpCode == "" {
			return nil, nil, ErrOTPRequired
		}
		if !totp.Validate(otpCode, u.TOTPSecret) {
			l.Warn("TOTP validation failed", slog.String("user_id", u.ID))
			return nil, nil, ErrInvalidCredentials
		}
		amr = append(amr, AMROTP)
	}
	return &u, amr, nil
}

// EnrollTOTP generates and stores a TOTP secret for the user. The returned
// key carries the otpauth:// URL for authenticator apps.
func (s *UserService) EnrollTOTP(ctx context.Context, u *domain.User) (*otp.Key, error) {
	if u.HasTOTP() {
		return nil, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, u.ID, key.Secret()); err != nil {
		return nil, fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	u.TOTPSecret = key.Secret()
	return key, nil
}
