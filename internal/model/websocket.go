package model

// WebSocket message types
const (
	WSMessageTypeJob  = "job"
	WSMessageTypePing = "ping"
	WSMessageTypePong = "pong"
)

// WSMessage is the envelope for client-originated control messages.
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobMessage pushes a full job snapshot to subscribers. The polling API
// remains the source of truth; this is a live mirror of the same snapshot.
type WSJobMessage struct {
	Type string `json:"type"`
	Job  Job    `json:"job"`
}
