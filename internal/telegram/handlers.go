package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photofx-bot/internal/access"
	"photofx-bot/internal/image"
	"photofx-bot/internal/limiter"
	"photofx-bot/internal/settings"
	"photofx-bot/internal/stylize"
)

// Handler processes Telegram updates
type Handler struct {
	api      BotAPI
	state    *access.State
	backend  stylize.Backend
	proc     *image.Processor
	limiter  *limiter.UserLimiter
	settings *settings.Settings
	notifier *Notifier
	files    FileFetcher
	style    string
	logger   *slog.Logger
}

// NewHandler creates a new update handler
func NewHandler(
	api BotAPI,
	state *access.State,
	backend stylize.Backend,
	proc *image.Processor,
	userLimiter *limiter.UserLimiter,
	set *settings.Settings,
	notifier *Notifier,
	files FileFetcher,
	style string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		api:      api,
		state:    state,
		backend:  backend,
		proc:     proc,
		limiter:  userLimiter,
		settings: set,
		notifier: notifier,
		files:    files,
		style:    style,
		logger:   logger,
	}
}

type authLevel int

const (
	authAny authLevel = iota
	authAdmin
)

type command struct {
	run  func(h *Handler, ctx context.Context, msg *tgbotapi.Message)
	auth authLevel

	// denyReply controls whether an unauthorized caller gets a reply
	// or a silent ignore.
	denyReply bool
}

var commands = map[string]command{
	"start":          {run: (*Handler).cmdStart},
	"help":           {run: (*Handler).cmdHelp},
	"request_access": {run: (*Handler).cmdRequestAccess},
	"status":         {run: (*Handler).cmdStatus},
	"adminhelp":      {run: (*Handler).cmdAdminHelp, auth: authAdmin, denyReply: true},
	"approve":        {run: (*Handler).cmdApprove, auth: authAdmin},
	"block":          {run: (*Handler).cmdBlock, auth: authAdmin},
	"pending":        {run: (*Handler).cmdPending, auth: authAdmin},
	"toggle_nsfw":    {run: (*Handler).cmdToggleNSFW, auth: authAdmin},
	"send_message":   {run: (*Handler).cmdSendMessage, auth: authAdmin},
	"broadcast":      {run: (*Handler).cmdBroadcast, auth: authAdmin},
}

// HandleUpdate processes a single update. It is the outermost event
// boundary: a panic in any handler is contained here so the update
// loop keeps running.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling update",
				"panic", r,
				"update_id", update.UpdateID,
			)
			if update.Message != nil {
				h.sendText(update.Message.Chat.ID, "An unexpected error occurred. Please try again later.")
			}
		}
	}()

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg)
	}
}

// handleCommand resolves the command and enforces its required
// authorization level before any handler code runs.
func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd, ok := commands[msg.Command()]
	if !ok {
		h.sendText(msg.Chat.ID, "Unknown command. Use /help for available commands.")
		return
	}

	if cmd.auth == authAdmin && !h.state.IsAdmin(msg.From.ID) {
		h.logger.Warn("unauthorized admin command",
			"command", msg.Command(),
			"user_id", msg.From.ID,
		)
		if cmd.denyReply {
			h.sendText(msg.Chat.ID, "You are not authorized to use admin commands.")
		}
		return
	}

	cmd.run(h, ctx, msg)
}

func (h *Handler) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	h.logger.Info("user started the bot", "user_id", userID, "username", msg.From.UserName)

	text := "Welcome!\n\nI can apply an AI style filter to your photos.\n\n"
	switch h.state.StatusOf(userID) {
	case access.StatusAdmin:
		text += "You are an admin. Use /adminhelp for admin commands.\n"
	case access.StatusApproved:
		text += "You have approved access. Send me a photo to transform!\n"
	case access.StatusTrialUsed, access.StatusPending:
		text += "You have used your one-time trial. Use /request_access to ask for full access.\n"
	default:
		text += "You have a one-time free trial. Send me a photo to try it out!\n"
	}
	text += "\nUse /help for more info."

	h.sendText(msg.Chat.ID, text)
}

func (h *Handler) cmdHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := "How to use the bot:\n" +
		"1. Send me a photo you want to transform.\n" +
		"2. I will apply an AI style filter and send the result back.\n\n" +
		"Access:\n" +
		"- New users get a one-time free trial.\n" +
		"- After the trial, use /request_access to ask an admin for full access.\n\n" +
		"Commands:\n" +
		"/start - Check your status and welcome message.\n" +
		"/help - Show this help message.\n" +
		"/request_access - Ask admin for full access (after trial).\n" +
		"/status - Check your current access status."

	if h.state.IsAdmin(msg.From.ID) {
		text += "\n\nUse /adminhelp for admin-specific commands."
	}

	h.sendText(msg.Chat.ID, text)
}

func (h *Handler) cmdAdminHelp(ctx context.Context, msg *tgbotapi.Message) {
	nsfw := "Disabled"
	if h.settings.NSFWEnabled() {
		nsfw = "Enabled"
	}

	backendStatus := "Unknown"
	if hc, ok := h.backend.(stylize.HealthChecker); ok {
		if err := hc.CheckHealth(ctx); err != nil {
			h.logger.Warn("stylize backend health check failed", "error", err)
			backendStatus = "Offline"
		} else {
			backendStatus = "Online"
		}
	}

	h.sendText(msg.Chat.ID, fmt.Sprintf(
		"Admin commands:\n"+
			"/approve <user_id> - Grant full access to a user.\n"+
			"/block <user_id> - Revoke access for a user.\n"+
			"/pending - List users waiting for approval.\n"+
			"/status <user_id> - Check a specific user's status.\n"+
			"/broadcast <message> - Send a message to all approved users.\n"+
			"/toggle_nsfw - Enable/disable NSFW generation (current: %s).\n"+
			"/send_message <user_id> <message> - Send a message to a specific user.\n\n"+
			"Stylize backend: %s\n"+
			"Active transforms: %d",
		nsfw, backendStatus, h.limiter.ActiveCount()))
}

func (h *Handler) cmdRequestAccess(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if h.state.HasAccess(userID) {
		h.sendText(msg.Chat.ID, "You already have approved access.")
		return
	}
	if !h.state.HasUsedTrial(userID) {
		h.sendText(msg.Chat.ID, "You can still use your free trial. Send a photo first!")
		return
	}

	if !h.state.RequestAccess(userID) {
		h.sendText(msg.Chat.ID, "Could not process your request. You might already have access.")
		return
	}

	h.sendText(msg.Chat.ID, "Your request for access has been sent to the admins.")

	notification := fmt.Sprintf("Access request: user %s (ID: %d) has requested access.",
		displayName(msg.From), userID)
	for _, adminID := range h.state.ListAdmins() {
		if err := h.notifier.SendOne(adminID, notification); err != nil {
			h.logger.Error("failed to notify admin of access request",
				"admin_id", adminID, "error", err)
		}
	}
}

// cmdStatus answers with the caller's own status, or, for an admin
// supplying a numeric argument, the target user's status. An argument
// from a non-admin is ignored and treated as self-status.
func (h *Handler) cmdStatus(ctx context.Context, msg *tgbotapi.Message) {
	target := msg.From.ID
	header := "Your status:"

	if h.state.IsAdmin(msg.From.ID) && msg.CommandArguments() != "" {
		id, err := parseUserID(msg.CommandArguments())
		if err != nil {
			h.sendText(msg.Chat.ID, "Usage: /status [user_id] (optional, admin only)")
			return
		}
		target = id
		header = fmt.Sprintf("Status for user %d:", target)
	}

	h.sendText(msg.Chat.ID, fmt.Sprintf("%s %s", header, h.state.StatusOf(target)))
}

func (h *Handler) cmdApprove(ctx context.Context, msg *tgbotapi.Message) {
	target, err := parseUserID(msg.CommandArguments())
	if err != nil {
		h.sendText(msg.Chat.ID, "Usage: /approve <user_id>")
		return
	}

	h.state.Approve(target)
	h.sendText(msg.Chat.ID, fmt.Sprintf("User %d has been approved.", target))

	if err := h.notifier.SendOne(target,
		"Your access request has been approved! You can now use the bot freely."); err != nil {
		h.logger.Error("failed to send approval notification", "user_id", target, "error", err)
	}
}

func (h *Handler) cmdBlock(ctx context.Context, msg *tgbotapi.Message) {
	target, err := parseUserID(msg.CommandArguments())
	if err != nil {
		h.sendText(msg.Chat.ID, "Usage: /block <user_id>")
		return
	}

	// Admins are never blockable.
	if h.state.IsAdmin(target) {
		h.sendText(msg.Chat.ID, "Cannot block an admin.")
		return
	}

	h.state.Block(target)
	h.sendText(msg.Chat.ID, fmt.Sprintf("User %d has been blocked.", target))

	if err := h.notifier.SendOne(target,
		"Your access to the bot has been revoked by an admin."); err != nil {
		h.logger.Error("failed to send block notification", "user_id", target, "error", err)
	}
}

func (h *Handler) cmdPending(ctx context.Context, msg *tgbotapi.Message) {
	pending := h.state.ListPending()
	if len(pending) == 0 {
		h.sendText(msg.Chat.ID, "No pending access requests.")
		return
	}

	var b strings.Builder
	b.WriteString("Pending approval requests:\n")
	for _, id := range pending {
		b.WriteString(fmt.Sprintf("- %s\n", h.resolveDisplayName(id)))
	}

	h.sendText(msg.Chat.ID, b.String())
}

func (h *Handler) cmdToggleNSFW(ctx context.Context, msg *tgbotapi.Message) {
	mode := "DISABLED"
	if h.settings.ToggleNSFW() {
		mode = "ENABLED"
	}
	h.logger.Info("nsfw mode toggled", "admin_id", msg.From.ID, "enabled", mode == "ENABLED")
	h.sendText(msg.Chat.ID, fmt.Sprintf("NSFW generation mode is now %s.", mode))
}

func (h *Handler) cmdSendMessage(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.SplitN(msg.CommandArguments(), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		h.sendText(msg.Chat.ID, "Usage: /send_message <user_id> <your_message_here>")
		return
	}
	target, err := parseUserID(parts[0])
	if err != nil {
		h.sendText(msg.Chat.ID, "Usage: /send_message <user_id> <your_message_here>")
		return
	}

	text := strings.TrimSpace(parts[1])
	if err := h.notifier.SendOne(target, "Message from admin:\n\n"+text); err != nil {
		h.logger.Error("failed to deliver admin message", "user_id", target, "error", err)
		h.sendText(msg.Chat.ID, fmt.Sprintf("Failed to send message to user %d.", target))
		return
	}

	h.logger.Info("admin message delivered", "admin_id", msg.From.ID, "user_id", target)
	h.sendText(msg.Chat.ID, fmt.Sprintf("Message sent successfully to user %d.", target))
}

func (h *Handler) cmdBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		h.sendText(msg.Chat.ID, "Usage: /broadcast <your_message_here>")
		return
	}

	targets := h.state.ListApproved()
	if len(targets) == 0 {
		h.sendText(msg.Chat.ID, "No approved users found to broadcast to.")
		return
	}

	h.sendText(msg.Chat.ID, fmt.Sprintf("Starting broadcast to %d approved users...", len(targets)))
	h.logger.Info("broadcast started", "admin_id", msg.From.ID, "targets", len(targets))

	sent, failed, err := h.notifier.Broadcast(ctx, targets, "Broadcast message:\n\n"+text)
	if err != nil {
		h.logger.Warn("broadcast interrupted", "error", err, "sent", sent, "failed", failed)
	}

	h.sendText(msg.Chat.ID, fmt.Sprintf(
		"Broadcast finished.\nSuccessfully sent: %d\nFailed: %d", sent, failed))
}

// resolveDisplayName looks up a user's chat for a readable name,
// degrading to the raw ID when the lookup fails.
func (h *Handler) resolveDisplayName(id int64) string {
	chat, err := h.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: id},
	})
	if err != nil {
		h.logger.Debug("failed to resolve display name", "user_id", id, "error", err)
		return fmt.Sprintf("User ID: %d (could not fetch details)", id)
	}
	if chat.UserName != "" {
		return fmt.Sprintf("@%s (ID: %d)", chat.UserName, id)
	}
	if chat.FirstName != "" {
		return fmt.Sprintf("%s (ID: %d)", chat.FirstName, id)
	}
	return fmt.Sprintf("User ID: %d", id)
}

func (h *Handler) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}
