package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photofx-bot/internal/access"
	"photofx-bot/internal/config"
	"photofx-bot/internal/image"
	"photofx-bot/internal/limiter"
	"photofx-bot/internal/settings"
	"photofx-bot/internal/stylize"
)

// Bot represents the Telegram bot
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	cfg     config.TelegramConfig
	logger  *slog.Logger

	// Track active message processing
	activeRequests sync.WaitGroup
}

// NewBot creates a new Telegram bot
func NewBot(
	cfg *config.Config,
	state *access.State,
	backend stylize.Backend,
	proc *image.Processor,
	userLimiter *limiter.UserLimiter,
	set *settings.Settings,
	logger *slog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	notifier := NewNotifier(api, cfg.Broadcast.SendDelay, logger)
	handler := NewHandler(api, state, backend, proc, userLimiter, set, notifier,
		newTelegramFiles(api), cfg.Stylize.Style, logger)

	return &Bot{
		api:     api,
		handler: handler,
		cfg:     cfg.Telegram,
		logger:  logger,
	}, nil
}

// Run starts the bot and blocks until context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")

			// Stop receiving updates
			b.api.StopReceivingUpdates()

			// Wait for active requests with timeout
			done := make(chan struct{})
			go func() {
				b.activeRequests.Wait()
				close(done)
			}()

			select {
			case <-done:
				b.logger.Info("all active requests completed")
			case <-time.After(25 * time.Second):
				b.logger.Warn("some requests may not have completed")
			}

			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			// Process update in goroutine
			b.activeRequests.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.activeRequests.Done()

				// Create request context with timeout
				reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
				defer cancel()

				b.handler.HandleUpdate(reqCtx, upd)
			}(update)
		}
	}
}
