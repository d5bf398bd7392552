package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/handlers"
	"github.com/ghadeerreda0-lab/Bot-New/internal/middleware"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

const (
	workerCount   = 10
	updateTimeout = 30 * time.Second
)

type Bot struct {
	api      *tgbotapi.BotAPI
	config   *config.Config
	handlers *handlers.HandlerManager
	limiter  *middleware.RateLimiter
	notifier *handlers.Notifier

	// User sessions for conversation state
	sessions map[int64]*handlers.UserSession
	mu       sync.Mutex

	// Worker pool for parallel processing
	workerChans []chan tgbotapi.Update

	ctx    context.Context
	cancel context.CancelFunc
}

func InitBot(cfg *config.Config, db *gorm.DB, svc handlers.Services, limiter *middleware.RateLimiter) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	handlerMgr := handlers.NewHandlerManager(cfg, db, svc)
	handlerMgr.BotUsername = api.Self.UserName

	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		api:         api,
		config:      cfg,
		handlers:    handlerMgr,
		limiter:     limiter,
		sessions:    make(map[int64]*handlers.UserSession),
		workerChans: make([]chan tgbotapi.Update, workerCount),
		ctx:         ctx,
		cancel:      cancel,
	}
	bot.notifier = handlers.NewNotifier(handlerMgr, bot)

	// Start workers
	for i := 0; i < workerCount; i++ {
		bot.workerChans[i] = make(chan tgbotapi.Update, 100)
		go bot.startWorker(bot.workerChans[i])
	}

	// Start update listener
	go bot.startUpdateListener()

	return bot, nil
}

// Notifier delivers relay confirmations and scheduled reports through this bot.
func (b *Bot) Notifier() *handlers.Notifier {
	return b.notifier
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			var userID int64
			if update.Message != nil && update.Message.From != nil {
				userID = update.Message.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}
			if userID == 0 {
				continue
			}

			// Hashed dispatch to workers to ensure per-user ordered processing
			workerIdx := userID % int64(len(b.workerChans))
			if workerIdx < 0 {
				workerIdx = -workerIdx
			}
			b.workerChans[workerIdx] <- update
		}

		if b.ctx.Err() != nil {
			return
		}
		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

func (b *Bot) startWorker(ch chan tgbotapi.Update) {
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleUpdate", "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(b.ctx, updateTimeout)
	defer cancel()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	if message.Chat != nil && !message.Chat.IsPrivate() {
		return
	}

	logger.Debug("Received message", "user_id", userID, "text", message.Text)

	if !b.limiter.CheckUserLimit(userID) {
		b.sendMessage(userID, handlers.MsgRateLimited, nil)
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}
	b.handlers.HandleMessage(ctx, message, b.getSession(userID), b)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	switch message.Command() {
	case "start":
		// Always clear session on start to prevent stuck states
		b.clearSession(userID)
		b.handlers.HandleStart(ctx, message, b.getSession(userID), b)
	case "help":
		b.sendMessage(userID, handlers.MsgHelp, MainMenuKeyboard(b.handlers.IsAdmin(userID)))
	case "cancel":
		b.clearSession(userID)
		b.sendMessage(userID, handlers.MsgCancel, MainMenuKeyboard(b.handlers.IsAdmin(userID)))
	case "admin":
		b.handlers.HandleAdminPanel(userID, b.getSession(userID), b)
	case "ban":
		b.handlers.HandleBan(ctx, message, true, b)
	case "unban":
		b.handlers.HandleBan(ctx, message, false, b)
	default:
		b.sendMessage(userID, handlers.MsgMainMenu, MainMenuKeyboard(b.handlers.IsAdmin(userID)))
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	if !b.limiter.CheckUserLimit(userID) {
		b.AnswerCallbackQuery(query.ID, handlers.MsgRateLimited, true)
		return
	}
	b.handlers.HandleCallback(ctx, query, b.getSession(userID), b)
}

func (b *Bot) getSession(userID int64) *handlers.UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	if session, exists := b.sessions[userID]; exists {
		return session
	}
	session := handlers.NewSession()
	b.sessions[userID] = session
	return session
}

func (b *Bot) clearSession(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions[userID] = handlers.NewSession()
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	// Add RTL mark for Arabic text
	rtlText := "\u200f" + text
	msg := tgbotapi.NewMessage(chatID, rtlText)
	msg.ParseMode = tgbotapi.ModeHTML

	switch kb := keyboard.(type) {
	case tgbotapi.ReplyKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.InlineKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = kb
	}

	sentMsg, err := b.send(msg, chatID)
	if err != nil {
		return 0
	}
	return sentMsg.MessageID
}

// send retries network failures up to three times.
func (b *Bot) send(c tgbotapi.Chattable, chatID int64) (tgbotapi.Message, error) {
	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		var sent tgbotapi.Message
		sent, err = b.api.Send(c)
		if err == nil {
			return sent, nil
		}
		logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)
		if !isNetworkError(err) {
			return tgbotapi.Message{}, err
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return tgbotapi.Message{}, err
}

func isNetworkError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "network is unreachable")
}

func (b *Bot) SendMessage(chatID int64, text string, keyboard interface{}) int {
	return b.sendMessage(chatID, text, keyboard)
}

func (b *Bot) SendDocument(chatID int64, fileName string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = caption
	_, err := b.send(doc, chatID)
	return err
}

func (b *Bot) DeleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	deleteMsg := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := b.api.Request(deleteMsg); err != nil {
		logger.Error("Failed to delete message", "chat_id", chatID, "msg_id", messageID, "error", err)
	}
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard interface{}) {
	rtlText := "\u200f" + text
	msg := tgbotapi.NewEditMessageText(chatID, messageID, rtlText)
	msg.ParseMode = tgbotapi.ModeHTML

	if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
		msg.ReplyMarkup = &kb
	}

	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func (b *Bot) AnswerCallbackQuery(queryID string, text string, showAlert bool) {
	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = showAlert
	if _, err := b.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "error", err, "query_id", queryID)
	}
}

func (b *Bot) GetMainMenuKeyboard(isAdmin bool) interface{} {
	return MainMenuKeyboard(isAdmin)
}

func (b *Bot) GetAdminKeyboard() interface{} {
	return AdminMenuKeyboard()
}

func (b *Bot) GetCancelKeyboard() interface{} {
	return CancelKeyboard()
}

func (b *Bot) Stop() {
	b.cancel()
	b.api.StopReceivingUpdates()
	logger.Info("Bot stopped receiving updates")
}
