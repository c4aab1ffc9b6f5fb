package handlers

import (
	"net/http"

	"github.com/jason-s-yu/mychat/internal/models"
)

// SendChatHandler handles POST /chat/send.
//
// Request payload: { "content": "hello" }
// Response payload: { "content": "<canned reply>", "timestamp": "..." }
func (s *APIServer) SendChatHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Chat.Reply(r.Context(), req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) ChatResponsesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Chat.Responses())
}
