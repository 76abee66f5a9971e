package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the slice of *tgbotapi.BotAPI the handlers depend on.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(cfg tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetFileDirectURL(fileID string) (string, error)
}

// FileFetcher downloads a Telegram file into memory.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

type telegramFiles struct {
	api    BotAPI
	client *http.Client
}

func newTelegramFiles(api BotAPI) *telegramFiles {
	return &telegramFiles{
		api:    api,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *telegramFiles) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
