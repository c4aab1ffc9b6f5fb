package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/models"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// ListNotificationsHandler handles GET /notifications?limit=N, newest first.
func (s *APIServer) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxNotificationLimit {
			s.writeError(w, r, apperr.Invalidf("limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	if s.Notifications == nil {
		writeJSON(w, http.StatusOK, []models.Notification{})
		return
	}
	list, err := s.Notifications.ListNotifications(r.Context(), s.viewerID(r), limit)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.Internal, err, "failed to list notifications"))
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}
