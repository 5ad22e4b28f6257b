package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"relaybot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMsgLen = 4000

// Telegram implements domain.Channel for Telegram Bot.
//
// Each update is classified by payload before it reaches the bus: a shared
// contact card becomes KindContact, a photo or document becomes KindMedia
// (with the file already resolved to a direct download URL), everything else
// is KindText. Commands stay in the text payload; parsing them is the
// dispatcher's job so the CLI channel behaves identically.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat ID for telegram outbound", "chatID", msg.ChatID, "err", err)
			return
		}
		if msg.RequestContact {
			t.sendContactPrompt(chatID, msg.Content)
			return
		}
		t.sendMessage(chatID, msg.Content)
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: the bot stops when Start's context is cancelled.
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) Send(ctx context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	t.sendMessage(id, content)
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", msg.From.UserName,
		)
		t.sendMessage(chatID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}

	inbound := domain.InboundMessage{
		Channel:      "telegram",
		ChatID:       strconv.FormatInt(chatID, 10),
		SenderID:     strconv.FormatInt(userID, 10),
		SenderName:   msg.From.FirstName,
		SenderHandle: msg.From.UserName,
		Timestamp:    time.Unix(int64(msg.Date), 0),
	}

	switch {
	case msg.Contact != nil:
		inbound.Kind = domain.KindContact
		inbound.Phone = msg.Contact.PhoneNumber

	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		ref, err := t.resolveFile(photo.FileID, "", "image/jpeg")
		if err != nil {
			t.logger.Error("cannot resolve photo", "file_id", photo.FileID, "err", err)
			t.sendMessage(chatID, "There was an error analyzing the file.")
			return
		}
		inbound.Kind = domain.KindMedia
		inbound.File = ref

	case msg.Document != nil:
		doc := msg.Document
		ref, err := t.resolveFile(doc.FileID, doc.FileName, doc.MimeType)
		if err != nil {
			t.logger.Error("cannot resolve document", "file_id", doc.FileID, "err", err)
			t.sendMessage(chatID, "There was an error analyzing the file.")
			return
		}
		inbound.Kind = domain.KindMedia
		inbound.File = ref

	default:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}
		inbound.Kind = domain.KindText
		inbound.Content = text
	}

	t.logger.Info("telegram message received",
		"user_id", userID,
		"chat_id", chatID,
		"kind", inbound.Kind,
	)

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	t.bus.Publish(inbound)
}

// resolveFile turns a Telegram file ID into a direct download URL.
func (t *Telegram) resolveFile(fileID, name, mime string) (*domain.FileRef, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	return &domain.FileRef{
		ID:   fileID,
		Name: name,
		Mime: mime,
		URL:  url,
	}, nil
}

// pickPhoto returns the largest available size of a photo.
func pickPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(sizes) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.FileSize > best.FileSize {
			best = p
		}
	}
	return best
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// sendContactPrompt delivers a message with a one-time "share contact" keyboard.
func (t *Telegram) sendContactPrompt(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("Share Contact"),
		),
	)
	keyboard.OneTimeKeyboard = true
	msg.ReplyMarkup = keyboard

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("telegram contact prompt failed", "err", err)
	}
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram has a 4096 char limit per message
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends a single message chunk. Markdown parse errors fall back to
// plain text; anything else is logged and dropped (no retry policy here).
func (t *Telegram) sendChunk(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if t.parseMode != "" {
		msg.ParseMode = t.parseMode
	}

	_, err := t.bot.Send(msg)
	if err == nil {
		return
	}

	if msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		t.logger.Warn("telegram markdown parse error, resending as plain text",
			"err", err, "parseMode", t.parseMode,
		)
		plain := tgbotapi.NewMessage(chatID, text)
		if _, err2 := t.bot.Send(plain); err2 == nil {
			return
		}
	}

	t.logger.Error("telegram send failed", "err", err)
}
