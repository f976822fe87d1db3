package api

import (
	"net/http"
	"time"

	"marketplace/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPServer) handleRegister(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		user, err := s.services.Auth.Register(r.Context(), service.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
		}, role)
		if err != nil {
			s.writeServiceError(w, r, err, "User")
			return
		}

		message := "User registered successfully"
		if user.IsProvider() {
			message = "Provider registered successfully"
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": message,
			"userId":  user.ID,
		})
	}
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.services.Auth.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err, "User")
		return
	}

	s.setCookie(w, accessTokenCookie, session.AccessToken, maxAge(session.AccessExpires))
	s.setCookie(w, refreshTokenCookie, session.RefreshToken, maxAge(session.RefreshExpires))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "User logged in successfully",
		"user":         session.User,
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.services.Auth.Logout(r.Context(), claims.UserID); err != nil {
		s.writeServiceError(w, r, err, "User")
		return
	}

	s.setCookie(w, accessTokenCookie, "", -1)
	s.setCookie(w, refreshTokenCookie, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleRefresh accepts the refresh token from its cookie or, failing that,
// from the JSON body.
func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		token = req.RefreshToken
	}

	accessToken, expires, err := s.services.Auth.Refresh(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, err, "User")
		return
	}

	s.setCookie(w, accessTokenCookie, accessToken, maxAge(expires))
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

func maxAge(expires time.Time) int {
	secs := int(time.Until(expires).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
