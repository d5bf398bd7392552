package handlers

import (
	"fmt"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes
const (
	CbDepositMethod  = "dep_m:"
	CbWithdrawMethod = "wd_m:"
	CbApprove        = "adm_ok:"
	CbReject         = "adm_no:"
	CbBind           = "adm_bind:"
	CbToggleChannel  = "adm_ch:"
	CbCancel         = "cancel"
)

// MethodKeyboard lists payment methods as inline buttons.
func MethodKeyboard(prefix string, methods []string, settings map[string]config.MethodSettings) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, key := range methods {
		label := key
		if m, ok := settings[key]; ok && m.Name != "" {
			label = m.Name
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefix+key),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(BtnCancel, CbCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// PendingActionKeyboard carries the approve / decline buttons under a pending request.
func PendingActionKeyboard(txID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ قبول", fmt.Sprintf("%s%d", CbApprove, txID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ رفض", fmt.Sprintf("%s%d", CbReject, txID)),
		),
	)
}

func BindKeyboard(confirmationID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 ربط بعملية", fmt.Sprintf("%s%d", CbBind, confirmationID)),
		),
	)
}

// ChannelToggleKeyboard offers one enable / disable button per channel.
func ChannelToggleKeyboard(channels []models.Channel) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range channels {
		label := "⏸ إيقاف " + c.Number
		if !c.Active {
			label = "▶️ تفعيل " + c.Number
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", CbToggleChannel, c.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func CancelInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnCancel, CbCancel),
		),
	)
}
