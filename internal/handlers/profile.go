package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/avatar"
	"github.com/jason-s-yu/mychat/internal/profile"
)

const avatarFormField = "file"

func (s *APIServer) GetOwnProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.Profiles.GetOwnProfile(r.Context(), s.viewerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProfileHandler handles GET /profile/{userID}. Anonymous viewers are
// allowed; a bad session is treated as anonymous.
func (s *APIServer) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.Profiles.GetProfile(r.Context(), s.viewerID(r), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateOwnProfileHandler handles PUT /profile/me. Fields left out of the
// payload, or sent as null, are not changed.
//
// Request payload: { "display_name": "Ali", "bio": "...", "profile_visibility": "contacts_only" }
func (s *APIServer) UpdateOwnProfileHandler(w http.ResponseWriter, r *http.Request) {
	var patch profile.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Profiles.UpdateOwnProfile(r.Context(), s.viewerID(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UploadAvatarHandler handles POST /profile/me/avatar with a multipart "file" field.
func (s *APIServer) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	// leave headroom for the multipart envelope; avatar.Service enforces the real limit
	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxSize+1<<20)
	file, header, err := r.FormFile(avatarFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperr.WithDetails(apperr.Wrap(apperr.InvalidArgument, err, "invalid avatar image"), "file exceeds 5 MiB"))
			return
		}
		s.writeError(w, r, apperr.Wrap(apperr.InvalidArgument, err, "no file provided"))
		return
	}
	defer file.Close()

	p, err := s.Profiles.ReplaceAvatar(r.Context(), s.viewerID(r), &avatar.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *APIServer) DeleteAvatarHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Profiles.RemoveAvatar(r.Context(), s.viewerID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
