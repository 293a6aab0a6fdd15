package session

import (
	"time"

	"github.com/nfrund/sigrelay/internal/pubsub"
)

// Opened is the payload of EventOpened.
type Opened struct {
	SessionID string    `json:"session_id"`
	Transport string    `json:"transport"`
	Remote    string    `json:"remote"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Closed is the payload of EventClosed.
type Closed struct {
	SessionID  string `json:"session_id"`
	Transport  string `json:"transport"`
	Remote     string `json:"remote"`
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
	Stats      Stats  `json:"stats"`
}

var (
	// EventOpened is published when a session starts running.
	EventOpened = pubsub.NewEvent[Opened]("session.opened", "A client connection started a relay session")
	// EventClosed is published once both halves of a session have stopped.
	EventClosed = pubsub.NewEvent[Closed]("session.closed", "A relay session ended and released its resources")
)
