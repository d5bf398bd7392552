package handlers

import (
	"context"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"gorm.io/gorm"
)

// BotInterface is the part of the Telegram client the handlers talk to.
type BotInterface interface {
	SendMessage(chatID int64, text string, keyboard interface{}) int
	EditMessage(chatID int64, messageID int, text string, keyboard interface{})
	DeleteMessage(chatID int64, messageID int)
	AnswerCallbackQuery(queryID string, text string, showAlert bool)
	SendDocument(chatID int64, fileName string, data []byte, caption string) error
	GetMainMenuKeyboard(isAdmin bool) interface{}
	GetAdminKeyboard() interface{}
	GetCancelKeyboard() interface{}
}

type Services struct {
	Allocator *services.Allocator
	Ledger    *services.Ledger
	Payments  *services.PaymentService
	Referrals *services.ReferralService
	Gifts     *services.GiftService
	Matcher   *services.Matcher
	Reports   *services.ReportService
}

type HandlerManager struct {
	Config   *config.Config
	UserRepo *repositories.UserRepository
	Accounts *repositories.AccountRepository
	Services

	// BotUsername builds referral links; set once the bot has authorised.
	BotUsername string

	now func() time.Time
}

func NewHandlerManager(cfg *config.Config, db *gorm.DB, svc Services) *HandlerManager {
	return &HandlerManager{
		Config:   cfg,
		UserRepo: repositories.NewUserRepository(db),
		Accounts: repositories.NewAccountRepository(db),
		Services: svc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *HandlerManager) IsAdmin(telegramID int64) bool {
	return h.Config.IsAdmin(telegramID)
}

// CurrentUser loads the registered user behind a Telegram id and refreshes
// their activity stamp.
func (h *HandlerManager) CurrentUser(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := h.UserRepo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if err := h.UserRepo.UpdateLastActivity(ctx, user.ID, h.now()); err != nil {
		logger.Warn("Failed to update last activity", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (h *HandlerManager) mainMenu(bot BotInterface, telegramID int64) interface{} {
	return bot.GetMainMenuKeyboard(h.IsAdmin(telegramID))
}

// notifyAdmins sends text to every operator.
func (h *HandlerManager) notifyAdmins(bot BotInterface, text string, keyboard interface{}) {
	for _, id := range h.Config.AllAdmins() {
		bot.SendMessage(id, text, keyboard)
	}
}
