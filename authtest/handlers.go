package authtest

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventlytics/go-auth-client/identity"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registration struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	FullName string        `json:"full_name"`
	Role     identity.Role `json:"role"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	stub, ok := s.users[body.Email]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stub.passwordHash), []byte(body.Password)); err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !stub.user.IsActive {
		writeDetail(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	now := s.nowTime().UTC()
	s.mu.Lock()
	stub.user.LastLogin = &now
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.mintAccessToken(stub.user),
		"refresh_token": s.mintRefreshToken(stub.user.Email),
		"token_type":    tokenTypeBearer,
		"expires_in":    int64(s.accessTTL / time.Second),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registration
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	_, exists := s.users[body.Email]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	role := body.Role
	if role == "" {
		role = identity.RoleAnalyst
	}
	user := s.AddUser(body.Email, body.Password, role)
	if body.FullName != "" {
		s.mu.Lock()
		s.users[body.Email].user.FullName = body.FullName
		user = s.users[body.Email].user
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		// The refresh token travels in the body only; an Authorization
		// header is never consulted here.
		writeDetail(w, http.StatusUnprocessableEntity, "refresh_token is required")
		return
	}

	s.mu.Lock()
	email, ok := s.refreshTokens[body.RefreshToken]
	var stub *stubUser
	if ok {
		stub = s.users[email]
	}
	s.mu.Unlock()

	if stub == nil || !stub.user.IsActive {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.mintAccessToken(stub.user),
		"token_type":   tokenTypeBearer,
		"expires_in":   int64(s.accessTTL / time.Second),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.meCalls.Add(1)

	user, _, ok := s.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)

	_, rawToken, ok := s.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	s.mu.Lock()
	s.blacklisted[rawToken] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var body passwordChange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	stub := s.users[user.Email]
	s.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword([]byte(stub.passwordHash), []byte(body.CurrentPassword)); err != nil {
		writeDetail(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to change password")
		return
	}
	s.mu.Lock()
	stub.passwordHash = string(hash)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	})
}
