package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/contacts"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/jason-s-yu/mychat/internal/validation"
)

type sendRequestBody struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

type updateStatusBody struct {
	Status models.ContactStatus `json:"status" validate:"required,oneof=pending accepted rejected blocked"`
}

// SearchUsersHandler handles POST /contacts/search.
//
// Request payload: { "query": "ali", "limit": 20 }
func (s *APIServer) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	var req contacts.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.Contacts.SearchUsers(r.Context(), s.viewerID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ListContactsHandler handles GET /contacts.
func (s *APIServer) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.Contacts.ListContacts(r.Context(), s.viewerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// SendContactRequestHandler handles POST /contacts/requests.
//
// Request payload: { "receiver_id": "some-user-id" }
func (s *APIServer) SendContactRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req sendRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if fields := validation.Struct(req); fields != nil {
		s.writeError(w, r, apperr.WithFields(apperr.Invalidf("invalid contact request"), fields...))
		return
	}
	d, err := s.Contacts.SendRequest(r.Context(), s.viewerID(r), req.ReceiverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *APIServer) GetContactHandler(w http.ResponseWriter, r *http.Request) {
	id, err := contactID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.Contacts.GetContact(r.Context(), s.viewerID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateContactHandler handles PUT /contacts/{id}.
//
// Request payload: { "status": "accepted" }
func (s *APIServer) UpdateContactHandler(w http.ResponseWriter, r *http.Request) {
	id, err := contactID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateStatusBody
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if fields := validation.Struct(req); fields != nil {
		s.writeError(w, r, apperr.WithFields(apperr.Invalidf("invalid status update"), fields...))
		return
	}
	d, err := s.Contacts.UpdateStatus(r.Context(), s.viewerID(r), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *APIServer) DeleteContactHandler(w http.ResponseWriter, r *http.Request) {
	id, err := contactID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Contacts.DeleteContact(r.Context(), s.viewerID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contactID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalidf("invalid contact id")
	}
	return id, nil
}
