package auth

import "time"

// Role is a user's permission tier. Roles form a total order: a higher
// role satisfies any access check that accepts an equal-or-lower role.
type Role string

const (
	RoleUser       Role = "USER"
	RoleCashier    Role = "CASHIER"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var roleLevels = map[Role]int{
	RoleUser:       1,
	RoleCashier:    2,
	RoleManager:    3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// Level returns the numeric rank of the role, or 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Allowed reports whether a user holding role passes a check declaring the
// given acceptable roles. The caller passes when its level is at least the
// minimum level among the declared set.
func Allowed(role Role, required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	level := role.Level()
	if level == 0 {
		return false
	}
	min := 0
	for _, req := range required {
		l := req.Level()
		if l == 0 {
			continue
		}
		if min == 0 || l < min {
			min = l
		}
	}
	if min == 0 {
		return false
	}
	return level >= min
}

// User represents an authenticated user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenPair carries a freshly issued access/refresh token set.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}
