package users

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserEmailEmpty    = errors.New("user email is empty")
	ErrUserEmailInvalid  = errors.New("user email is invalid")
	ErrUserPasswdEmpty   = errors.New("user password is empty")
	ErrUserStatusUnknown = errors.New("unknown user status")
	ErrUserRoleUnknown   = errors.New("unknown user role")
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a status value at the boundary.
func ParseStatus(status string) (Status, error) {
	switch status {
	case "ACTIVE":
		return StatusActive, nil
	case "BLOCKED":
		return StatusBlocked, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUserStatusUnknown, status)
	}
}

// Role is the authorization role claimed in issued tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a role value at the boundary.
func ParseRole(role string) (Role, error) {
	switch role {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUserRoleUnknown, role)
	}
}

type User struct {
	id           int64
	email        string
	firstName    string
	lastName     string
	passwordHash string
	status       Status
	role         Role
	created      time.Time
}

// NewUser creates a new active user with a bcrypt password hash.
func NewUser(email, firstName, lastName, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("HashPassword: %w", err)
	}

	return &User{
		email:        email,
		firstName:    firstName,
		lastName:     lastName,
		passwordHash: passwordHash,
		status:       StatusActive,
		role:         RoleUser,
		created:      time.Now().UTC(),
	}, nil
}

// RestoreUser rebuilds a user entity from stored state.
func RestoreUser(
	id int64, email, firstName, lastName, passwordHash string,
	status Status, role Role, created time.Time,
) *User {
	return &User{
		id:           id,
		email:        email,
		firstName:    firstName,
		lastName:     lastName,
		passwordHash: passwordHash,
		status:       status,
		role:         role,
		created:      created,
	}
}

func (u *User) ID() int64 {
	return u.id
}

func (u *User) Email() string {
	return u.email
}

func (u *User) FirstName() string {
	return u.firstName
}

func (u *User) LastName() string {
	return u.lastName
}

func (u *User) FullName() string {
	return u.firstName + " " + u.lastName
}

func (u *User) PasswordHash() string {
	return u.passwordHash
}

func (u *User) Status() Status {
	return u.status
}

func (u *User) Role() Role {
	return u.role
}

func (u *User) Created() time.Time {
	return u.created
}

func (u *User) IsBlocked() bool {
	return u.status == StatusBlocked
}

func (u *User) SetID(id int64) {
	u.id = id
}

func (u *User) SetStatus(status Status) {
	u.status = status
}

func (u *User) SetRole(role Role) {
	u.role = role
}

func (u *User) SetPasswordHash(hash string) {
	u.passwordHash = hash
}

// HashPassword hashes a plain-text password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrUserEmailEmpty
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ErrUserEmailInvalid
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrUserPasswdEmpty
	}

	return nil
}
