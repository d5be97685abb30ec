package identity

import (
	"fmt"
	"time"
	"unicode"
)

// Role represents a user's role on the analytics platform.
type Role string

const (
	RoleAdmin   Role = "admin"   // Full platform administration
	RoleManager Role = "manager" // Team and report management
	RoleAnalyst Role = "analyst" // Read and analyse access
)

// User is an immutable snapshot of the authenticated user, as returned by the
// identity endpoint. It is replaced wholesale after every successful
// authentication, never partially mutated.
type User struct {
	ID         int        `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       Role       `json:"role"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// HasRole checks whether the user's role is a member of allowedRoles.
func (u *User) HasRole(allowedRoles ...Role) bool {
	if u == nil {
		return false
	}
	for _, role := range allowedRoles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// ValidatePasswordStrength checks if a password meets the platform's
// registration requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
// - Contains at least one special character
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	if !hasSpecial {
		return fmt.Errorf("password must contain at least one special character")
	}

	return nil
}
