package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/auth"
	"github.com/sirupsen/logrus"
)

const (
	authCookieName = "auth_token"
	maxJSONBody    = 1 << 20
)

type ctxKey int

const viewerKey ctxKey = iota

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with its mapped status. Internal causes are logged,
// not sent.
func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(apperr.Internal)
	resp := errorResponse{Error: "internal server error"}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Category != goerrors.CategoryInternal {
		status = ae.Code
		if status == 0 {
			status = apperr.HTTPStatus(ae.Category)
		}
		resp.Error = ae.Message
		resp.Details = apperr.Details(ae)
	} else {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "invalid request payload")
	}
	return nil
}

// extractToken returns the bearer token from the Authorization header, falling
// back to the auth_token cookie.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(authCookieName); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the session on r to a user id.
func (s *APIServer) authenticate(r *http.Request) (string, error) {
	token := extractToken(r)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return s.Sessions.AuthenticateJWT(token)
}

// requireViewer rejects requests without a valid session and stores the
// viewer id on the request context.
func (s *APIServer) requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil || userID == "" {
			s.writeError(w, r, apperr.Wrap(apperr.Unauthenticated, err, "authentication required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey, userID)))
	})
}

// viewerID is the authenticated user id for r. On routes without
// requireViewer an invalid or missing session yields "" (anonymous).
func (s *APIServer) viewerID(r *http.Request) string {
	if id, ok := r.Context().Value(viewerKey).(string); ok {
		return id
	}
	id, err := s.authenticate(r)
	if err != nil {
		return ""
	}
	return id
}
