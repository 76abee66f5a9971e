package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photofx-bot/internal/access"
	apperrors "photofx-bot/internal/errors"
	"photofx-bot/internal/stylize"
)

// handlePhoto runs the transform pipeline for a photo upload: policy
// check, download, stylize, deliver, then trial accounting. The trial
// is recorded only after a successful delivery so a failed transform
// never consumes it.
func (h *Handler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if !h.state.CanUseBot(userID) {
		h.logger.Warn("photo upload without access", "user_id", userID)
		if h.state.StatusOf(userID) == access.StatusTrialUsed {
			h.sendText(msg.Chat.ID, apperrors.ErrTrialUsed.UserMsg)
		} else {
			h.sendText(msg.Chat.ID, apperrors.ErrUnauthorized.UserMsg)
		}
		return
	}

	if !h.limiter.TryAcquire(userID) {
		h.sendText(msg.Chat.ID, apperrors.ErrTransformInProgress.UserMsg)
		return
	}
	defer h.limiter.Release(userID)

	// Send "processing" placeholder
	placeholder, err := h.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "Processing your photo..."))
	if err != nil {
		h.logger.Error("failed to send placeholder message", "error", err)
	}

	// Largest representation is last in the slice
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	photo, err := h.files.Fetch(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "error", err, "user_id", userID)
		h.reportFailure(msg.Chat.ID, placeholder, apperrors.GetUserMessage(err))
		return
	}

	h.logger.Info("transform started", "user_id", userID, "photo_bytes", len(photo))

	result, err := h.backend.Stylize(ctx, photo, stylize.Options{
		Style:     h.style,
		AllowNSFW: h.settings.NSFWEnabled(),
	})
	if err != nil {
		h.logger.Error("transform failed", "error", err, "user_id", userID)
		h.reportFailure(msg.Chat.ID, placeholder, apperrors.GetUserMessage(err))
		return
	}

	out, err := h.proc.Recompress(result)
	if err != nil {
		h.logger.Error("output processing failed", "error", err, "user_id", userID)
		h.reportFailure(msg.Chat.ID, placeholder, apperrors.ErrEmptyResult.UserMsg)
		return
	}

	photoMsg := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "result.jpg",
		Bytes: out,
	})
	photoMsg.Caption = "Here's your transformed photo!"
	if _, err := h.api.Send(photoMsg); err != nil {
		h.logger.Error("failed to deliver result", "error", err, "user_id", userID)
		h.reportFailure(msg.Chat.ID, placeholder, apperrors.GetUserMessage(err))
		return
	}

	// Remove the placeholder once the result is out
	if placeholder.MessageID != 0 {
		h.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, placeholder.MessageID))
	}

	h.logger.Info("transform delivered", "user_id", userID, "result_bytes", len(out))

	if !h.state.HasAccess(userID) {
		h.state.RecordTrialUse(userID)
		h.sendText(msg.Chat.ID,
			"You have now used your one-time trial. Use /request_access to get full access for future use.")
	}
}

// reportFailure replaces the placeholder with a failure notice, or
// sends a fresh message if the placeholder never made it out.
func (h *Handler) reportFailure(chatID int64, placeholder tgbotapi.Message, text string) {
	if placeholder.MessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, placeholder.MessageID, text)
		if _, err := h.api.Send(edit); err != nil {
			h.logger.Error("failed to edit placeholder message", "error", err)
		}
		return
	}
	h.sendText(chatID, text)
}
