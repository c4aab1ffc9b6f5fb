package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/auth"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/jason-s-yu/mychat/internal/validation"
	"github.com/sirupsen/logrus"
)

type createUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Username    string `json:"username" validate:"required,min=3,max=50"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// CreateUserHandler registers a new account with public visibility.
func (s *APIServer) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if fields := validation.Struct(req); fields != nil {
		s.writeError(w, r, apperr.WithFields(apperr.Invalidf("invalid registration"), fields...))
		return
	}

	user := models.User{
		Email:             req.Email,
		Password:          req.Password,
		Username:          req.Username,
		DisplayName:       req.DisplayName,
		ProfileVisibility: models.VisibilityPublic,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if err := s.Accounts.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			s.writeError(w, r, apperr.Wrap(apperr.Conflict, err, "email or username already exists"))
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.Logger.WithField("user_id", user.ID).Info("user created")
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler handles user login requests. It expects a JSON payload with email and password,
// and returns a JSON response with an authentication token if the login is successful.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
//
// The token is also sent as the auth_token cookie.
func (s *APIServer) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.Accounts.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}
	ok := false
	if user != nil && user.Password != "" {
		ok, err = auth.ComparePasswordAndHash(req.Password, user.Password)
		if err != nil {
			s.Logger.WithError(err).WithField("user_id", user.ID).Warn("stored password hash is unreadable")
		}
	}
	if !ok {
		s.Logger.WithFields(logrus.Fields{"email": req.Email}).Info("failed login attempt")
		s.writeError(w, r, apperr.Forbiddenf("authentication failed"))
		return
	}

	token, err := s.Sessions.CreateJWT(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := s.Sessions.TTL(); ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
