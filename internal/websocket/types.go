package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to the browser.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// Client represents a WebSocket client connection
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	lastActivity time.Time
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a browser origin may connect.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedOrigins accepts the listed origins. "*" accepts any origin.
type AllowedOrigins []string

// IsAllowedOrigin reports whether origin is listed.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	for _, allowed := range a {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
