// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the chat socket.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected without the "chat" subprotocol.
)
