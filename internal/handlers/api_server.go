// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/mychat/internal/auth"
	"github.com/jason-s-yu/mychat/internal/avatar"
	"github.com/jason-s-yu/mychat/internal/chat"
	"github.com/jason-s-yu/mychat/internal/contacts"
	"github.com/jason-s-yu/mychat/internal/middleware"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/jason-s-yu/mychat/internal/profile"
	"github.com/sirupsen/logrus"
)

// Accounts is the slice of the user store the identity endpoints need.
type Accounts interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// NotificationReader lists a user's contact notifications.
type NotificationReader interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// APIServer holds the services the HTTP layer dispatches to.
type APIServer struct {
	Accounts Accounts
	Sessions *auth.Sessions
	Contacts *contacts.Service
	Profiles *profile.Service
	Avatars  *avatar.Service
	Chat     *chat.Service
	Logger   *logrus.Logger

	Notifications NotificationReader

	// AllowedOrigins feeds CORS and the websocket origin check.
	AllowedOrigins []string
}

// Router builds the full route table.
func (s *APIServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/user", func(r chi.Router) {
		r.Post("/create", s.CreateUserHandler)
		r.Post("/login", s.LoginHandler)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Post("/send", s.SendChatHandler)
		r.Get("/responses", s.ChatResponsesHandler)
		r.Get("/ws", s.ChatWSHandler)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Use(s.requireViewer)
		r.Get("/", s.ListContactsHandler)
		r.Post("/search", s.SearchUsersHandler)
		r.Post("/requests", s.SendContactRequestHandler)
		r.Get("/{id}", s.GetContactHandler)
		r.Put("/{id}", s.UpdateContactHandler)
		r.Delete("/{id}", s.DeleteContactHandler)
	})

	r.With(s.requireViewer).Get("/notifications", s.ListNotificationsHandler)

	r.Route("/profile", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireViewer)
			r.Get("/me", s.GetOwnProfileHandler)
			r.Put("/me", s.UpdateOwnProfileHandler)
			r.Post("/me/avatar", s.UploadAvatarHandler)
			r.Delete("/me/avatar", s.DeleteAvatarHandler)
		})
		r.Get("/{userID}", s.GetProfileHandler)
	})

	files := http.StripPrefix(avatar.PublicPrefix, http.FileServer(http.Dir(s.Avatars.Dir())))
	r.Handle(avatar.PublicPrefix+"*", cacheFor(time.Hour, files))

	return r
}

func cacheFor(d time.Duration, next http.Handler) http.Handler {
	v := "public, max-age=" + strconv.Itoa(int(d.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", v)
		next.ServeHTTP(w, r)
	})
}
