package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photofx-bot/internal/access"
	appimage "photofx-bot/internal/image"
	"photofx-bot/internal/limiter"
	"photofx-bot/internal/settings"
	"photofx-bot/internal/stylize"
)

// fakeAPI records outbound traffic and can simulate delivery failures
// per chat.
type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	failChats map[int64]bool
	chatErr   bool
	nextMsgID int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failChats: make(map[int64]bool)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failChats[chatIDOf(c)] {
		return tgbotapi.Message{}, errors.New("delivery failed")
	}
	f.sent = append(f.sent, c)
	f.nextMsgID++
	return tgbotapi.Message{MessageID: f.nextMsgID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChat(cfg tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	if f.chatErr {
		return tgbotapi.Chat{}, errors.New("chat unreachable")
	}
	return tgbotapi.Chat{ID: cfg.ChatID, UserName: "someone"}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "http://files.local/" + fileID, nil
}

func chatIDOf(c tgbotapi.Chattable) int64 {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.ChatID
	case tgbotapi.PhotoConfig:
		return v.ChatID
	case tgbotapi.EditMessageTextConfig:
		return v.ChatID
	case tgbotapi.DeleteMessageConfig:
		return v.ChatID
	default:
		return 0
	}
}

func (f *fakeAPI) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

func (f *fakeAPI) editsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok && m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

func (f *fakeAPI) photosTo(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok && p.ChatID == chatID {
			count++
		}
	}
	return count
}

func containsText(texts []string, substr string) bool {
	for _, t := range texts {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

// fakeBackend is a scripted stylize.Backend.
type fakeBackend struct {
	mu        sync.Mutex
	calls     int
	lastOpts  stylize.Options
	result    []byte
	err       error
	healthErr error
	panics    bool
}

func (b *fakeBackend) CheckHealth(ctx context.Context) error {
	return b.healthErr
}

func (b *fakeBackend) Stylize(ctx context.Context, photo []byte, opts stylize.Options) ([]byte, error) {
	b.mu.Lock()
	b.calls++
	b.lastOpts = opts
	b.mu.Unlock()

	if b.panics {
		panic("backend exploded")
	}
	return b.result, b.err
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeFiles struct{}

func (fakeFiles) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	return []byte("raw-photo-bytes"), nil
}

// testJPEG produces bytes the output processor can decode.
func testJPEG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

type testEnv struct {
	handler *Handler
	api     *fakeAPI
	backend *fakeBackend
	state   *access.State
	set     *settings.Settings
}

func newTestEnv(t *testing.T, adminIDs ...int64) *testEnv {
	t.Helper()

	api := newFakeAPI()
	backend := &fakeBackend{result: testJPEG(t)}
	state := access.NewState(access.NewAdminSet(adminIDs), nil, nil, slog.Default())
	set := settings.New()

	handler := NewHandler(
		api,
		state,
		backend,
		appimage.NewProcessor(80),
		limiter.NewUserLimiter(),
		set,
		NewNotifier(api, 0, slog.Default()),
		fakeFiles{},
		"anime",
		slog.Default(),
	)

	return &testEnv{handler: handler, api: api, backend: backend, state: state, set: set}
}

// commandMessage builds a message whose entities mark the leading
// bot command, the way the Telegram API delivers them.
func commandMessage(userID int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func photoMessage(userID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat: &tgbotapi.Chat{ID: userID},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "thumb", Width: 90},
			{FileID: "full", Width: 800},
		},
	}
}

func (e *testEnv) handle(msg *tgbotapi.Message) {
	e.handler.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}
