package domain

import "time"

type User struct {
	ID            string // ULID, published as "sub"
	Username      string
	Name          string
	Email         string
	EmailVerified bool
	PasswordHash  string // argon2 encoded
	TOTPSecret    string // base32, empty when TOTP is not enrolled
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u *User) HasTOTP() bool { return u.TOTPSecret != "" }
