package stylize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// jobMonitor tracks a single job via the service's WebSocket feed
type jobMonitor struct {
	wsURL    string
	logger   *slog.Logger
	clientID string
}

// newJobMonitor creates a monitor with a unique client ID
func newJobMonitor(wsURL string, logger *slog.Logger) *jobMonitor {
	return &jobMonitor{
		wsURL:    wsURL,
		logger:   logger,
		clientID: uuid.New().String(),
	}
}

// ClientID returns the client ID for use in job submission
func (m *jobMonitor) ClientID() string {
	return m.clientID
}

// WaitForCompletion waits for a specific job to reach a terminal state
// Returns nil on success, error on failure or context cancellation
func (m *jobMonitor) WaitForCompletion(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s?clientId=%s", m.wsURL, m.clientID)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Set up read deadline management
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	// Start ping ticker
	pingTicker := time.NewTicker(10 * time.Second)
	defer pingTicker.Stop()

	// Channel for read results. errCh is buffered and msgCh sends
	// select on done so the read goroutine always exits once this
	// function returns and closes the connection.
	msgCh := make(chan WSMessage)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Read goroutine
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				m.logger.Debug("failed to unmarshal ws message", "error", err)
				continue
			}
			select {
			case msgCh <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Send close frame before returning
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()

		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}

		case err := <-errCh:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("websocket closed unexpectedly")
			}
			return fmt.Errorf("websocket read: %w", err)

		case msg := <-msgCh:
			// Reset read deadline on any message
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))

			if msg.Type != "job_update" {
				continue
			}

			var update JobUpdate
			if err := json.Unmarshal(msg.Data, &update); err != nil {
				continue
			}
			if update.JobID != jobID {
				continue
			}

			switch update.Status {
			case JobStatusCompleted:
				m.logger.Debug("job complete", "job_id", jobID)
				return nil
			case JobStatusFailed:
				if update.Error != "" {
					return fmt.Errorf("job failed: %s", update.Error)
				}
				return fmt.Errorf("job failed")
			}
		}
	}
}
