package telegram

import (
	"github.com/ghadeerreda0-lab/Bot-New/internal/handlers"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MainMenuKeyboard creates the main menu keyboard
func MainMenuKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton

	// Row 1 - Balance
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(handlers.BtnBalance),
	))

	// Row 2 - Deposit - Withdraw
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(handlers.BtnDeposit),
		tgbotapi.NewKeyboardButton(handlers.BtnWithdraw),
	))

	// Row 3 - Gift code - Send gift
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(handlers.BtnRedeem),
		tgbotapi.NewKeyboardButton(handlers.BtnSendGift),
	))

	// Row 4 - Account - Referral
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(handlers.BtnAccount),
		tgbotapi.NewKeyboardButton(handlers.BtnReferral),
	))

	// Row 5 - History - Help
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(handlers.BtnHistory),
		tgbotapi.NewKeyboardButton(handlers.BtnHelp),
	))

	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminPanel),
		))
	}

	return tgbotapi.NewReplyKeyboard(rows...)
}

// AdminMenuKeyboard is the operator panel.
func AdminMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminPendingDeposits),
			tgbotapi.NewKeyboardButton(handlers.BtnAdminPendingWithdraws),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminChannels),
			tgbotapi.NewKeyboardButton(handlers.BtnAdminAddChannel),
			tgbotapi.NewKeyboardButton(handlers.BtnAdminResetChannels),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminCommission),
			tgbotapi.NewKeyboardButton(handlers.BtnAdminSettle),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminGiftCode),
			tgbotapi.NewKeyboardButton(handlers.BtnAdminUnmatched),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnAdminStats),
			tgbotapi.NewKeyboardButton(handlers.BtnBack),
		),
	)
}

// CancelKeyboard creates a keyboard with just cancel button
func CancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(handlers.BtnCancel),
		),
	)
}
