package handlers

import (
	"context"
	"fmt"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
)

// notifyOwner tells the owner of t how their request ended.
func (h *HandlerManager) notifyOwner(ctx context.Context, t *models.Transaction, bot BotInterface) {
	if t == nil {
		return
	}
	user, err := h.UserRepo.GetUserByID(ctx, t.UserID)
	if err != nil {
		logger.Warn("Cannot notify transaction owner", "tx_id", t.ID, "error", err)
		return
	}
	if text := outcomeText(t, user.Balance); text != "" {
		bot.SendMessage(user.TelegramID, text, nil)
	}
}

func outcomeText(t *models.Transaction, balance int64) string {
	order := orderLabel(t)
	amount := utils.FormatAmount(t.NetAmount)
	switch t.Status {
	case models.TxStatusCompleted:
		switch t.Kind {
		case models.TxKindDeposit:
			return fmt.Sprintf("✅ تم شحن %s ل.س (الطلب <code>%s</code>).\nرصيدك: %s ل.س", amount, order, utils.FormatAmount(balance))
		case models.TxKindWithdraw:
			return fmt.Sprintf("✅ تم تحويل %s ل.س إليك (الطلب <code>%s</code>).", amount, order)
		case models.TxKindReferralPayout:
			return fmt.Sprintf("💸 وصلتك عمولة إحالة بقيمة %s ل.س.\nرصيدك: %s ل.س", amount, utils.FormatAmount(balance))
		}
	case models.TxStatusRejected:
		text := fmt.Sprintf("❌ تم رفض الطلب <code>%s</code>.", order)
		if t.Kind == models.TxKindWithdraw {
			text += fmt.Sprintf("\nأعيد %s ل.س إلى رصيدك.", utils.FormatAmount(t.Amount))
		}
		if t.RejectReason != "" {
			text += "\nالسبب: " + t.RejectReason
		}
		return text
	}
	return ""
}

// Notifier pushes events raised outside the chat, such as relay
// confirmations and scheduled reports, to Telegram.
type Notifier struct {
	h   *HandlerManager
	bot BotInterface
}

func NewNotifier(h *HandlerManager, bot BotInterface) *Notifier {
	return &Notifier{h: h, bot: bot}
}

// NotifyCompleted tells the depositor their transfer was confirmed.
func (n *Notifier) NotifyCompleted(ctx context.Context, t *models.Transaction) {
	n.h.notifyOwner(ctx, t, n.bot)
}

// SendDailyReport delivers the report text and spreadsheet to every operator.
func (n *Notifier) SendDailyReport(ctx context.Context, report *services.DailyReport) error {
	admins := n.h.Config.AllAdmins()
	if len(admins) == 0 {
		return errNotAdmin
	}
	var firstErr error
	for _, id := range admins {
		if err := sendReport(id, report, n.bot); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
