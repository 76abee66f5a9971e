package stylize

import "encoding/json"

// JobRequest is sent to POST /jobs
type JobRequest struct {
	Image     []byte `json:"image"`
	Style     string `json:"style"`
	AllowNSFW bool   `json:"allow_nsfw"`
	ClientID  string `json:"client_id"`
}

// JobResponse is returned from POST /jobs
type JobResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// WSMessage represents a WebSocket message from the stylize service
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JobUpdate is the data payload for "job_update" messages
type JobUpdate struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Terminal job statuses reported over the websocket.
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
