package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	apperrors "github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const referralPrefix = "ref_"

// HandleStart registers the sender on first contact and links them to the
// referrer named in a ref_<code> start payload.
func (h *HandlerManager) HandleStart(ctx context.Context, message *tgbotapi.Message, session *UserSession, bot BotInterface) {
	from := message.From
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)

	user, created, err := h.UserRepo.EnsureUser(ctx, from.ID, from.UserName, security.SanitizeHTML(security.SanitizeString(fullName)))
	if err != nil {
		logger.Error("Failed to register user", "telegram_id", from.ID, "error", err)
		bot.SendMessage(from.ID, ErrorMessage(err), nil)
		return
	}
	if user.IsBanned {
		bot.SendMessage(from.ID, MsgBanned, nil)
		return
	}
	session.Reset()

	if payload := message.CommandArguments(); created && strings.HasPrefix(payload, referralPrefix) {
		referrer, err := h.Referrals.LinkByCode(ctx, strings.TrimPrefix(payload, referralPrefix), user.ID)
		if err != nil {
			logger.Warn("Referral link failed", "user_id", user.ID, "payload", payload, "error", err)
		} else {
			bot.SendMessage(referrer.TelegramID, fmt.Sprintf("🎉 انضم %s عبر رابط الإحالة الخاص بك.", user.DisplayName()), nil)
		}
	}

	bot.SendMessage(from.ID, fmt.Sprintf(MsgWelcome, user.DisplayName()), h.mainMenu(bot, from.ID))
}

// HandleMessage routes a text message either to the open conversation step
// or to the main menu button it names.
func (h *HandlerManager) HandleMessage(ctx context.Context, message *tgbotapi.Message, session *UserSession, bot BotInterface) {
	userID := message.From.ID
	text := strings.TrimSpace(message.Text)

	if text == BtnCancel {
		session.Reset()
		bot.SendMessage(userID, MsgCancel, h.mainMenu(bot, userID))
		return
	}

	user, err := h.CurrentUser(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNotFound) {
			bot.SendMessage(userID, "👋 أرسل /start للبدء.", nil)
			return
		}
		logger.Error("Failed to load user", "telegram_id", userID, "error", err)
		bot.SendMessage(userID, ErrorMessage(err), nil)
		return
	}
	if user.IsBanned {
		bot.SendMessage(userID, MsgBanned, nil)
		return
	}

	if session.State != StateNone {
		h.handleState(ctx, user, text, session, bot)
		return
	}

	switch text {
	case BtnBalance:
		h.handleBalance(user, bot)
	case BtnDeposit:
		h.startMethodChoice(ctx, user, CbDepositMethod, bot)
	case BtnWithdraw:
		h.startMethodChoice(ctx, user, CbWithdrawMethod, bot)
	case BtnAccount:
		h.handleAccount(ctx, user, session, bot)
	case BtnRedeem:
		session.State = StateRedeemCode
		bot.SendMessage(userID, MsgEnterGiftCode, bot.GetCancelKeyboard())
	case BtnSendGift:
		session.State = StateGiftReceiver
		bot.SendMessage(userID, MsgEnterReceiver, bot.GetCancelKeyboard())
	case BtnReferral:
		h.handleReferral(ctx, user, bot)
	case BtnHistory:
		h.handleHistory(ctx, user, bot)
	case BtnHelp:
		bot.SendMessage(userID, MsgHelp, h.mainMenu(bot, userID))
	default:
		if h.IsAdmin(userID) && h.HandleAdminMenu(ctx, message, session, bot) {
			return
		}
		bot.SendMessage(userID, MsgMainMenu, h.mainMenu(bot, userID))
	}
}

func (h *HandlerManager) handleState(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	switch session.State {
	case StateDepositAmount:
		h.handleDepositAmount(ctx, user, text, session, bot)
	case StateDepositReference:
		h.handleDepositReference(ctx, user, text, session, bot)
	case StateWithdrawAmount:
		h.handleWithdrawAmount(user, text, session, bot)
	case StateWithdrawPhone:
		h.handleWithdrawPhone(ctx, user, text, session, bot)
	case StateAccountUsername:
		h.handleAccountUsername(ctx, user, text, session, bot)
	case StateRedeemCode:
		h.handleRedeem(ctx, user, text, session, bot)
	case StateGiftReceiver:
		h.handleGiftReceiver(ctx, user, text, session, bot)
	case StateGiftAmount:
		h.handleGiftAmount(ctx, user, text, session, bot)
	default:
		if h.IsAdmin(user.TelegramID) {
			h.handleAdminState(ctx, user, text, session, bot)
			return
		}
		logger.Warn("Unknown session state", "state", session.State, "telegram_id", user.TelegramID)
		session.Reset()
		bot.SendMessage(user.TelegramID, MsgMainMenu, h.mainMenu(bot, user.TelegramID))
	}
}

// HandleCallback processes inline button presses.
func (h *HandlerManager) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery, session *UserSession, bot BotInterface) {
	userID := query.From.ID
	data := query.Data
	bot.AnswerCallbackQuery(query.ID, "", false)

	if data == CbCancel {
		session.Reset()
		if query.Message != nil {
			bot.DeleteMessage(userID, query.Message.MessageID)
		}
		bot.SendMessage(userID, MsgCancel, h.mainMenu(bot, userID))
		return
	}

	if strings.HasPrefix(data, "adm_") {
		if !h.IsAdmin(userID) {
			bot.SendMessage(userID, MsgAdminOnly, nil)
			return
		}
		h.handleAdminCallback(ctx, query, session, bot)
		return
	}

	user, err := h.CurrentUser(ctx, userID)
	if err != nil || user.IsBanned {
		bot.SendMessage(userID, MsgBanned, nil)
		return
	}

	switch {
	case strings.HasPrefix(data, CbDepositMethod):
		h.chooseMethod(user, strings.TrimPrefix(data, CbDepositMethod), StateDepositAmount, session, bot)
	case strings.HasPrefix(data, CbWithdrawMethod):
		h.chooseMethod(user, strings.TrimPrefix(data, CbWithdrawMethod), StateWithdrawAmount, session, bot)
	default:
		logger.Warn("Unknown callback", "data", data, "telegram_id", userID)
	}
}

func (h *HandlerManager) handleBalance(user *models.User, bot BotInterface) {
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf("💰 رصيدك الحالي: <b>%s</b> ل.س", utils.FormatAmount(user.Balance)),
		h.mainMenu(bot, user.TelegramID))
}

func (h *HandlerManager) startMethodChoice(ctx context.Context, user *models.User, prefix string, bot BotInterface) {
	exists, err := h.Accounts.Exists(ctx, user.ID)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	if !exists {
		bot.SendMessage(user.TelegramID, ErrorMessage(apperrors.New(apperrors.ErrCodeAccountMissing, "")), h.mainMenu(bot, user.TelegramID))
		return
	}
	methods := h.Payments.Methods()
	if len(methods) == 0 {
		bot.SendMessage(user.TelegramID, MsgNoMethods, nil)
		return
	}
	bot.SendMessage(user.TelegramID, MsgChooseMethod, MethodKeyboard(prefix, methods, h.Config.Payments.Methods))
}

func (h *HandlerManager) chooseMethod(user *models.User, key, next string, session *UserSession, bot BotInterface) {
	method, ok := h.Payments.Method(key)
	if !ok {
		bot.SendMessage(user.TelegramID, MsgNoMethods, nil)
		return
	}
	session.Reset()
	session.State = next
	session.Data[keyMethod] = key
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf(MsgEnterAmount, utils.FormatAmount(method.MinAmount), utils.FormatAmount(method.MaxAmount)),
		bot.GetCancelKeyboard())
}

func (h *HandlerManager) handleDepositAmount(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	amount, ok := parseAmount(text)
	if !ok {
		bot.SendMessage(user.TelegramID, MsgInvalidNumber, nil)
		return
	}
	method, _ := session.Data[keyMethod].(string)

	t, err := h.Payments.OpenDepositRequest(ctx, user.ID, amount, method, "")
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		if !apperrors.Is(err, apperrors.ErrCodeValidation) {
			session.Reset()
			bot.SendMessage(user.TelegramID, MsgMainMenu, h.mainMenu(bot, user.TelegramID))
		}
		return
	}

	destination := h.depositDestination(ctx, t)
	session.State = StateDepositReference
	session.Data[keyTxID] = t.ID
	bot.SendMessage(user.TelegramID, fmt.Sprintf(
		"🧾 طلب رقم <code>%s</code>\n\nحوّل <b>%s</b> ل.س إلى:\n<code>%s</code>\n\n%s",
		orderLabel(t), utils.FormatAmount(t.Amount), destination, MsgEnterReference,
	), bot.GetCancelKeyboard())
}

// depositDestination is the channel number for routed deposits and the
// method's fixed address otherwise.
func (h *HandlerManager) depositDestination(ctx context.Context, t *models.Transaction) string {
	if t.ChannelID != nil {
		ch, err := h.Allocator.Channel(ctx, *t.ChannelID)
		if err == nil {
			return ch.Number
		}
		logger.Error("Failed to load deposit channel", "tx_id", t.ID, "channel_id", *t.ChannelID, "error", err)
	}
	if m, ok := h.Payments.Method(t.Provider); ok && m.ReceiveAddress != "" {
		return m.ReceiveAddress
	}
	return "-"
}

func (h *HandlerManager) handleDepositReference(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	txID, _ := session.Data[keyTxID].(uint)
	reference := utils.NormalizeArabicNumbers(text)

	if err := h.Payments.AttachReference(ctx, user.ID, txID, reference); err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		if !apperrors.Is(err, apperrors.ErrCodeValidation) && !apperrors.Is(err, apperrors.ErrCodeDuplicateReference) {
			session.Reset()
			bot.SendMessage(user.TelegramID, MsgMainMenu, h.mainMenu(bot, user.TelegramID))
		}
		return
	}
	session.Reset()

	t, err := h.Ledger.Get(ctx, txID)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), h.mainMenu(bot, user.TelegramID))
		return
	}
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf("⏳ تم استلام طلبك <code>%s</code> وسيتم تأكيده فور وصول التحويل.", orderLabel(t)),
		h.mainMenu(bot, user.TelegramID))

	h.notifyAdmins(bot, fmt.Sprintf(
		"📥 طلب شحن جديد\nالطلب: <code>%s</code>\nالمستخدم: %s (<code>%d</code>)\nالطريقة: %s\nالمبلغ: %s ل.س\nرقم العملية: <code>%s</code>",
		orderLabel(t), user.DisplayName(), user.TelegramID, t.Provider, utils.FormatAmount(t.Amount), t.Reference(),
	), PendingActionKeyboard(t.ID))
}

func (h *HandlerManager) handleWithdrawAmount(user *models.User, text string, session *UserSession, bot BotInterface) {
	amount, ok := parseAmount(text)
	if !ok {
		bot.SendMessage(user.TelegramID, MsgInvalidNumber, nil)
		return
	}
	if amount > user.Balance {
		bot.SendMessage(user.TelegramID, ErrorMessage(apperrors.New(apperrors.ErrCodeInsufficientFunds, "")), nil)
		return
	}
	session.Data[keyAmount] = amount
	session.State = StateWithdrawPhone
	bot.SendMessage(user.TelegramID, MsgEnterPhone, bot.GetCancelKeyboard())
}

func (h *HandlerManager) handleWithdrawPhone(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	phone := utils.NormalizeArabicNumbers(text)
	if !security.ValidatePhoneNumber(phone) {
		bot.SendMessage(user.TelegramID, "⚠️ رقم الهاتف غير صحيح، أعد الإرسال.", nil)
		return
	}
	method, _ := session.Data[keyMethod].(string)
	amount, _ := session.Data[keyAmount].(int64)
	session.Reset()

	t, err := h.Payments.OpenWithdrawRequest(ctx, user.ID, amount, method, phone)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), h.mainMenu(bot, user.TelegramID))
		return
	}
	bot.SendMessage(user.TelegramID, fmt.Sprintf(
		"✅ تم تسجيل طلب السحب <code>%s</code>\nالمبلغ: %s ل.س\nالصافي بعد العمولة: %s ل.س\nسيتم التحويل بعد المراجعة.",
		orderLabel(t), utils.FormatAmount(t.Amount), utils.FormatAmount(t.NetAmount),
	), h.mainMenu(bot, user.TelegramID))

	h.notifyAdmins(bot, fmt.Sprintf(
		"📤 طلب سحب جديد\nالطلب: <code>%s</code>\nالمستخدم: %s (<code>%d</code>)\nالطريقة: %s\nالمبلغ: %s ل.س\nالصافي: %s ل.س\nالهاتف: <code>%s</code>",
		orderLabel(t), user.DisplayName(), user.TelegramID, t.Provider,
		utils.FormatAmount(t.Amount), utils.FormatAmount(t.NetAmount), phone,
	), PendingActionKeyboard(t.ID))
}

func (h *HandlerManager) handleAccount(ctx context.Context, user *models.User, session *UserSession, bot BotInterface) {
	exists, err := h.Accounts.Exists(ctx, user.ID)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	if exists {
		account, err := h.Accounts.Get(ctx, user.ID)
		if err != nil {
			bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
			return
		}
		bot.SendMessage(user.TelegramID, fmt.Sprintf(MsgAccountExists, account.Username), h.mainMenu(bot, user.TelegramID))
		return
	}
	session.State = StateAccountUsername
	bot.SendMessage(user.TelegramID, MsgEnterUsername, bot.GetCancelKeyboard())
}

func (h *HandlerManager) handleAccountUsername(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	username := security.SanitizeString(text)
	if !validUsername(username) {
		bot.SendMessage(user.TelegramID, "⚠️ اسم المستخدم يجب أن يكون من 3 إلى 32 حرفاً إنجليزياً أو رقماً.", nil)
		return
	}
	externalID, err := security.GenerateSecureCode(10)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	session.Reset()
	if err := h.Accounts.Link(ctx, user.ID, externalID, username); err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), h.mainMenu(bot, user.TelegramID))
		return
	}
	logger.Info("Provider account linked", "user_id", user.ID, "username", username)
	bot.SendMessage(user.TelegramID, fmt.Sprintf(MsgAccountCreated, username), h.mainMenu(bot, user.TelegramID))
}

func (h *HandlerManager) handleRedeem(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	session.Reset()
	t, err := h.Gifts.Redeem(ctx, user.ID, text)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), h.mainMenu(bot, user.TelegramID))
		return
	}
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf("🎉 تمت إضافة %s ل.س إلى رصيدك.", utils.FormatAmount(t.NetAmount)),
		h.mainMenu(bot, user.TelegramID))
}

func (h *HandlerManager) handleGiftReceiver(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	telegramID, err := strconv.ParseInt(utils.NormalizeArabicNumbers(strings.TrimSpace(text)), 10, 64)
	if err != nil {
		bot.SendMessage(user.TelegramID, MsgInvalidNumber, nil)
		return
	}
	receiver, err := h.Gifts.FindReceiver(ctx, telegramID)
	if err != nil {
		bot.SendMessage(user.TelegramID, "❌ لا يوجد مستخدم بهذا المعرّف.", nil)
		return
	}
	if receiver.ID == user.ID {
		bot.SendMessage(user.TelegramID, "⚠️ لا يمكنك إهداء نفسك.", nil)
		return
	}
	session.Data[keyReceiver] = receiver.ID
	session.State = StateGiftAmount
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf("💝 كم تريد أن تهدي %s؟ رصيدك %s ل.س", receiver.DisplayName(), utils.FormatAmount(user.Balance)),
		bot.GetCancelKeyboard())
}

func (h *HandlerManager) handleGiftAmount(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	amount, ok := parseAmount(text)
	if !ok {
		bot.SendMessage(user.TelegramID, MsgInvalidNumber, nil)
		return
	}
	receiverID, _ := session.Data[keyReceiver].(uint)
	session.Reset()

	sent, err := h.Gifts.SendGift(ctx, user.ID, receiverID, amount)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), h.mainMenu(bot, user.TelegramID))
		return
	}
	bot.SendMessage(user.TelegramID,
		fmt.Sprintf("✅ تم إرسال %s ل.س (الصافي للمستلم %s ل.س).", utils.FormatAmount(sent.Amount), utils.FormatAmount(sent.NetAmount)),
		h.mainMenu(bot, user.TelegramID))

	if receiver, err := h.UserRepo.GetUserByID(ctx, receiverID); err == nil {
		bot.SendMessage(receiver.TelegramID,
			fmt.Sprintf("🎁 وصلتك هدية بقيمة %s ل.س من %s.", utils.FormatAmount(sent.NetAmount), user.DisplayName()), nil)
	}
}

func (h *HandlerManager) handleReferral(ctx context.Context, user *models.User, bot BotInterface) {
	links, err := h.Referrals.ReferralsOf(ctx, user.ID)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	settings, err := h.Referrals.Settings(ctx)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	active := 0
	for _, l := range links {
		if l.IsActive {
			active++
		}
	}
	bot.SendMessage(user.TelegramID, fmt.Sprintf(
		"👥 رابط الإحالة الخاص بك:\nhttps://t.me/%s?start=%s%s\n\nعدد الإحالات: %d\nالنشطة: %d\nنسبة العمولة: %d%%\nالتوزيع القادم: %s",
		h.BotUsername, referralPrefix, user.ReferralCode, len(links), active,
		settings.RatePercent, settings.NextDistributionAt.Format("2006-01-02"),
	), h.mainMenu(bot, user.TelegramID))
}

var kindLabels = map[string]string{
	models.TxKindDeposit:        "شحن",
	models.TxKindWithdraw:       "سحب",
	models.TxKindGiftSent:       "هدية مرسلة",
	models.TxKindGiftReceived:   "هدية مستلمة",
	models.TxKindReferralPayout: "عمولة إحالة",
	models.TxKindBonus:          "مكافأة",
}

var statusLabels = map[string]string{
	models.TxStatusPending:   "⏳",
	models.TxStatusCompleted: "✅",
	models.TxStatusRejected:  "❌",
}

func (h *HandlerManager) handleHistory(ctx context.Context, user *models.User, bot BotInterface) {
	txs, err := h.Ledger.ListByUser(ctx, user.ID, 10)
	if err != nil {
		bot.SendMessage(user.TelegramID, ErrorMessage(err), nil)
		return
	}
	if len(txs) == 0 {
		bot.SendMessage(user.TelegramID, "🧾 لا توجد عمليات بعد.", h.mainMenu(bot, user.TelegramID))
		return
	}
	var b strings.Builder
	b.WriteString("🧾 آخر العمليات:\n\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "%s %s %s ل.س - %s\n",
			statusLabels[t.Status], kindLabels[t.Kind], utils.FormatAmount(t.Amount), t.CreatedAt.Format("2006-01-02 15:04"))
	}
	bot.SendMessage(user.TelegramID, b.String(), h.mainMenu(bot, user.TelegramID))
}

// parseAmount accepts Arabic-Indic digits and thousands separators.
func parseAmount(text string) (int64, bool) {
	clean := utils.StripThousands(utils.NormalizeArabicNumbers(strings.TrimSpace(text)))
	amount, err := strconv.ParseInt(clean, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

func orderLabel(t *models.Transaction) string {
	if t.OrderNumber != nil {
		return *t.OrderNumber
	}
	return fmt.Sprintf("#%d", t.ID)
}

// actorFor labels operator actions taken from the chat.
func actorFor(telegramID int64) string {
	return services.AdminActor(telegramID)
}
