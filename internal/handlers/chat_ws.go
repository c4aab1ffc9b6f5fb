package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/middleware"
	"github.com/jason-s-yu/mychat/internal/models"
)

const (
	chatSubprotocol = "chat"
	wsWriteTimeout  = 5 * time.Second
)

type chatErrorFrame struct {
	Error string `json:"error"`
}

// ChatWSHandler upgrades GET /chat/ws. Each {"content": "..."} frame gets one
// reply frame; empty content is answered with {"error": "..."}.
func (s *APIServer) ChatWSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{chatSubprotocol},
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != chatSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the chat subprotocol")
		return
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)
	err = s.serveChat(r.Context(), c)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		c.Close(websocket.StatusNormalClosure, "")
	}
}

func (s *APIServer) serveChat(ctx context.Context, c *websocket.Conn) error {
	for {
		var msg models.ChatRequest
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return err
		}

		var out any
		res, err := s.Chat.Reply(ctx, msg.Content)
		switch {
		case err == nil:
			out = res
		case apperr.Is(err, apperr.InvalidArgument):
			out = chatErrorFrame{Error: err.Error()}
		default:
			return err
		}

		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = wsjson.Write(wctx, c, out)
		cancel()
		if err != nil {
			return err
		}
	}
}

// originPatterns strips the scheme from the allowed origins, since the
// websocket origin check matches hosts only.
func (s *APIServer) originPatterns() []string {
	patterns := make([]string, 0, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, o)
	}
	return patterns
}
