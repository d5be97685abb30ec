package api

import "github.com/eventlytics/go-auth-client/identity"

// TokenPair is the token endpoint response: a short-lived JWT access token
// and the longer-lived refresh token used solely to mint a new access token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"` // typically "bearer"
	ExpiresIn    int64  `json:"expires_in,omitempty"` // seconds until expiry
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries new-account data for the registration endpoint.
type RegisterRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	FullName string        `json:"full_name"`
	Role     identity.Role `json:"role,omitempty"`
}

// Validate applies the platform's registration rules before any network call
// so obviously-bad payloads fail fast.
func (r RegisterRequest) Validate() error {
	if r.Email == "" {
		return &Error{StatusCode: 0, Detail: "email is required"}
	}
	if r.FullName == "" {
		return &Error{StatusCode: 0, Detail: "full name is required"}
	}
	if err := identity.ValidatePasswordStrength(r.Password); err != nil {
		return &Error{StatusCode: 0, Detail: err.Error()}
	}
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TokenVerification is the verify-token endpoint response.
type TokenVerification struct {
	Valid  bool          `json:"valid"`
	UserID int           `json:"user_id"`
	Email  string        `json:"email"`
	Role   identity.Role `json:"role"`
}
