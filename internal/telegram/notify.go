package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNoRecipients is returned by Broadcast when there is nobody to
// send to.
var ErrNoRecipients = errors.New("no broadcast recipients")

// Notifier delivers outbound messages to one or many recipients,
// isolating per-recipient transport faults.
type Notifier struct {
	api       BotAPI
	sendDelay time.Duration
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. sendDelay spaces out broadcast sends
// to stay under platform rate limits.
func NewNotifier(api BotAPI, sendDelay time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		api:       api,
		sendDelay: sendDelay,
		logger:    logger,
	}
}

// SendOne delivers a text message to a single recipient. The caller
// decides how to report a failure.
func (n *Notifier) SendOne(recipientID int64, text string) error {
	if _, err := n.api.Send(tgbotapi.NewMessage(recipientID, text)); err != nil {
		return fmt.Errorf("send to %d: %w", recipientID, err)
	}
	return nil
}

// Broadcast delivers text to every recipient, continuing past
// individual failures, and returns the final tallies. It errors only
// when there is nothing to do or the context is cancelled mid-batch.
func (n *Notifier) Broadcast(ctx context.Context, recipientIDs []int64, text string) (sent, failed int, err error) {
	if len(recipientIDs) == 0 {
		return 0, 0, ErrNoRecipients
	}

	for i, id := range recipientIDs {
		if err := n.SendOne(id, text); err != nil {
			n.logger.Warn("broadcast delivery failed", "user_id", id, "error", err)
			failed++
		} else {
			sent++
		}

		if i == len(recipientIDs)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return sent, failed, ctx.Err()
		case <-time.After(n.sendDelay):
		}
	}

	return sent, failed, nil
}
