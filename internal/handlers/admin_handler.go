package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	apperrors "github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	adminListLimit = 20
	commissionHelp = "أرسل التعديل بالشكل: <code>الحقل القيمة</code>\n" +
		"rate 10 | bonus 2000 | min_active 5 | min_charge 100000 | floor 10000 | period 30"
)

// HandleAdminPanel opens the operator keyboard.
func (h *HandlerManager) HandleAdminPanel(userID int64, session *UserSession, bot BotInterface) {
	if !h.IsAdmin(userID) {
		bot.SendMessage(userID, MsgAdminOnly, nil)
		return
	}
	session.Reset()
	bot.SendMessage(userID, MsgAdminPanel, bot.GetAdminKeyboard())
}

// HandleAdminMenu handles the operator keyboard buttons. It reports false
// for text that is not an admin button.
func (h *HandlerManager) HandleAdminMenu(ctx context.Context, message *tgbotapi.Message, session *UserSession, bot BotInterface) bool {
	userID := message.From.ID

	switch strings.TrimSpace(message.Text) {
	case BtnAdminPanel:
		h.HandleAdminPanel(userID, session, bot)
	case BtnBack:
		session.Reset()
		bot.SendMessage(userID, MsgMainMenu, h.mainMenu(bot, userID))
	case BtnAdminPendingDeposits:
		h.listPending(ctx, userID, models.TxKindDeposit, bot)
	case BtnAdminPendingWithdraws:
		h.listPending(ctx, userID, models.TxKindWithdraw, bot)
	case BtnAdminChannels:
		h.listChannels(ctx, userID, bot)
	case BtnAdminAddChannel:
		session.State = StateAdminAddChannel
		bot.SendMessage(userID, fmt.Sprintf("📡 أرسل رقم القناة وسعتها اختيارياً:\n<code>0933000000 %d</code>", h.Config.DefaultChannelCapacity), bot.GetCancelKeyboard())
	case BtnAdminResetChannels:
		h.resetChannels(ctx, userID, bot)
	case BtnAdminCommission:
		h.showCommission(ctx, userID, session, bot)
	case BtnAdminGiftCode:
		h.listGiftCodes(ctx, userID, bot)
		session.State = StateAdminGiftCode
		bot.SendMessage(userID, "🎟 أرسل: <code>المبلغ عدد_الاستخدامات عدد_الساعات</code>\nمثال: <code>5000 10 24</code>", bot.GetCancelKeyboard())
	case BtnAdminStats:
		h.sendDailyReport(ctx, userID, h.now(), bot)
	case BtnAdminSettle:
		h.runSettlement(ctx, userID, bot)
	case BtnAdminUnmatched:
		h.listUnmatched(ctx, userID, bot)
	default:
		return false
	}
	return true
}

func (h *HandlerManager) handleAdminState(ctx context.Context, user *models.User, text string, session *UserSession, bot BotInterface) {
	switch session.State {
	case StateAdminAddChannel:
		h.addChannel(ctx, user.TelegramID, text, session, bot)
	case StateAdminCommission:
		h.editCommission(ctx, user.TelegramID, text, session, bot)
	case StateAdminGiftCode:
		h.createGiftCode(ctx, user.TelegramID, text, session, bot)
	case StateAdminRejectNote:
		h.rejectWithReason(ctx, user.TelegramID, text, session, bot)
	case StateAdminBindConfirm:
		h.bindConfirmation(ctx, user.TelegramID, text, session, bot)
	default:
		logger.Warn("Unknown admin state", "state", session.State, "telegram_id", user.TelegramID)
		session.Reset()
		bot.SendMessage(user.TelegramID, MsgAdminPanel, bot.GetAdminKeyboard())
	}
}

func (h *HandlerManager) handleAdminCallback(ctx context.Context, query *tgbotapi.CallbackQuery, session *UserSession, bot BotInterface) {
	adminID := query.From.ID
	data := query.Data

	switch {
	case strings.HasPrefix(data, CbApprove):
		id, ok := parseID(strings.TrimPrefix(data, CbApprove))
		if !ok {
			return
		}
		t, err := h.Ledger.Complete(ctx, id, actorFor(adminID))
		if err != nil {
			bot.SendMessage(adminID, ErrorMessage(err), nil)
			return
		}
		if query.Message != nil {
			bot.EditMessage(adminID, query.Message.MessageID, query.Message.Text+"\n\n✅ تم القبول", nil)
		}
		h.notifyOwner(ctx, t, bot)

	case strings.HasPrefix(data, CbReject):
		id, ok := parseID(strings.TrimPrefix(data, CbReject))
		if !ok {
			return
		}
		session.Reset()
		session.State = StateAdminRejectNote
		session.Data[keyTxID] = id
		bot.SendMessage(adminID, "✍️ أرسل سبب الرفض:", bot.GetCancelKeyboard())

	case strings.HasPrefix(data, CbBind):
		id, ok := parseID(strings.TrimPrefix(data, CbBind))
		if !ok {
			return
		}
		session.Reset()
		session.State = StateAdminBindConfirm
		session.Data[keyConfirmation] = id
		bot.SendMessage(adminID, "🔗 أرسل رقم الطلب (مثل SYC24070001) لربطه بهذه الرسالة:", bot.GetCancelKeyboard())

	case strings.HasPrefix(data, CbToggleChannel):
		id, ok := parseID(strings.TrimPrefix(data, CbToggleChannel))
		if !ok {
			return
		}
		h.toggleChannel(ctx, adminID, id, bot)
	}
}

// HandleBan handles /ban <telegram_id> and /unban <telegram_id>.
func (h *HandlerManager) HandleBan(ctx context.Context, message *tgbotapi.Message, banned bool, bot BotInterface) {
	adminID := message.From.ID
	if !h.IsAdmin(adminID) {
		bot.SendMessage(adminID, MsgAdminOnly, nil)
		return
	}
	target, err := strconv.ParseInt(strings.TrimSpace(message.CommandArguments()), 10, 64)
	if err != nil {
		bot.SendMessage(adminID, "⚠️ الاستخدام: <code>/ban 123456789</code>", nil)
		return
	}
	user, err := h.UserRepo.GetUserByTelegramID(ctx, target)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	if err := h.UserRepo.SetBanned(ctx, user.ID, banned); err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	logger.Info("User ban changed", "user_id", user.ID, "banned", banned, "by", adminID)
	if banned {
		bot.SendMessage(adminID, fmt.Sprintf("⛔️ تم إيقاف %s.", user.DisplayName()), nil)
	} else {
		bot.SendMessage(adminID, fmt.Sprintf("✅ تم تفعيل %s.", user.DisplayName()), nil)
	}
}

func (h *HandlerManager) listPending(ctx context.Context, adminID int64, kind string, bot BotInterface) {
	txs, err := h.Ledger.ListPending(ctx, kind, adminListLimit)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	if len(txs) == 0 {
		bot.SendMessage(adminID, "✅ لا توجد طلبات معلقة.", nil)
		return
	}
	for i := range txs {
		t := &txs[i]
		owner := fmt.Sprintf("#%d", t.UserID)
		if u, err := h.UserRepo.GetUserByID(ctx, t.UserID); err == nil {
			owner = fmt.Sprintf("%s (<code>%d</code>)", u.DisplayName(), u.TelegramID)
		}
		text := fmt.Sprintf("%s <code>%s</code>\nالمستخدم: %s\nالطريقة: %s\nالمبلغ: %s ل.س\nالتاريخ: %s",
			kindLabels[t.Kind], orderLabel(t), owner, t.Provider, utils.FormatAmount(t.Amount), t.CreatedAt.Format("2006-01-02 15:04"))
		if ref := t.Reference(); ref != "" {
			text += fmt.Sprintf("\nرقم العملية: <code>%s</code>", ref)
		}
		if t.Kind == models.TxKindWithdraw {
			text += fmt.Sprintf("\nالصافي: %s ل.س", utils.FormatAmount(t.NetAmount))
			if phone, err := h.Payments.PayoutDetails(t); err == nil && phone != "" {
				text += fmt.Sprintf("\nالهاتف: <code>%s</code>", phone)
			}
		}
		bot.SendMessage(adminID, text, PendingActionKeyboard(t.ID))
	}
}

func (h *HandlerManager) listChannels(ctx context.Context, adminID int64, bot BotInterface) {
	channels, err := h.Allocator.ListChannels(ctx)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	summary, err := h.Allocator.Summary(ctx)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📡 القنوات: %d (النشطة %d)\nالإشغال: %s / %s (%.1f%%)\nأكبر مساحة متاحة: %s\n\n",
		summary.Channels, summary.Active, utils.FormatAmount(summary.Filled), utils.FormatAmount(summary.Capacity),
		summary.FillPercent(), utils.FormatAmount(summary.MaxHeadroom))
	for _, c := range channels {
		state := "🟢"
		if !c.Active {
			state = "🔴"
		}
		fmt.Fprintf(&b, "%s <code>%s</code> %s / %s\n", state, c.Number, utils.FormatAmount(c.Filled), utils.FormatAmount(c.Capacity))
	}
	if len(channels) == 0 {
		bot.SendMessage(adminID, b.String(), nil)
		return
	}
	bot.SendMessage(adminID, b.String(), ChannelToggleKeyboard(channels))
}

func (h *HandlerManager) toggleChannel(ctx context.Context, adminID int64, channelID uint, bot BotInterface) {
	ch, err := h.Allocator.Channel(ctx, channelID)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	if err := h.Allocator.SetActive(ctx, ch.ID, !ch.Active); err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	logger.Info("Channel toggled from chat", "channel_id", ch.ID, "active", !ch.Active, "by", adminID)
	h.listChannels(ctx, adminID, bot)
}

func (h *HandlerManager) addChannel(ctx context.Context, adminID int64, text string, session *UserSession, bot BotInterface) {
	fields := strings.Fields(utils.NormalizeArabicNumbers(text))
	if len(fields) == 0 || len(fields) > 2 {
		bot.SendMessage(adminID, MsgInvalidNumber, nil)
		return
	}
	capacity := h.Config.DefaultChannelCapacity
	if len(fields) == 2 {
		c, ok := parseAmount(fields[1])
		if !ok {
			bot.SendMessage(adminID, MsgInvalidNumber, nil)
			return
		}
		capacity = c
	}
	session.Reset()
	ch, err := h.Allocator.AddChannel(ctx, fields[0], capacity)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), bot.GetAdminKeyboard())
		return
	}
	bot.SendMessage(adminID, fmt.Sprintf("✅ أضيفت القناة <code>%s</code> بسعة %s.", ch.Number, utils.FormatAmount(ch.Capacity)), bot.GetAdminKeyboard())
}

func (h *HandlerManager) resetChannels(ctx context.Context, adminID int64, bot BotInterface) {
	n, err := h.Allocator.ResetAll(ctx)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	logger.Info("Channels reset from chat", "by", adminID, "count", n)
	bot.SendMessage(adminID, fmt.Sprintf("♻️ تم تصفير %d قناة وإعادة تفعيلها.", n), nil)
}

func (h *HandlerManager) showCommission(ctx context.Context, adminID int64, session *UserSession, bot BotInterface) {
	s, err := h.Referrals.Settings(ctx)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	session.State = StateAdminCommission
	bot.SendMessage(adminID, formatCommission(s)+h.topReferrers(ctx)+"\n\n"+commissionHelp, bot.GetCancelKeyboard())
}

func (h *HandlerManager) topReferrers(ctx context.Context) string {
	stats, err := h.Referrals.TopReferrers(ctx, 5)
	if err != nil {
		logger.Warn("Failed to load top referrers", "error", err)
		return ""
	}
	if len(stats) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n🏆 أفضل المحيلين:")
	for i, st := range stats {
		name := fmt.Sprintf("#%d", st.ReferrerID)
		if u, err := h.UserRepo.GetUserByID(ctx, st.ReferrerID); err == nil {
			name = u.DisplayName()
		}
		fmt.Fprintf(&b, "\n%d. %s: %d إحالة (%d نشطة)، %s ل.س", i+1, name, st.Referrals, st.Active, utils.FormatAmount(st.TotalCharged))
	}
	return b.String()
}

func (h *HandlerManager) listGiftCodes(ctx context.Context, adminID int64, bot BotInterface) {
	codes, err := h.Gifts.ListActiveCodes(ctx)
	if err != nil || len(codes) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("🎟 الأكواد الفعالة:")
	for _, c := range codes {
		fmt.Fprintf(&b, "\n<code>%s</code> %s ل.س (%d/%d) حتى %s",
			c.Code, utils.FormatAmount(c.Amount), c.UsedCount, c.MaxUses, c.ExpiresAt.Format("2006-01-02 15:04"))
	}
	bot.SendMessage(adminID, b.String(), nil)
}

func formatCommission(s *models.CommissionSettings) string {
	return fmt.Sprintf("📊 إعدادات العمولة\nالنسبة: %d%%\nالمكافأة الثابتة لكل إحالة: %s\nأقل عدد إحالات نشطة: %d\nحد تفعيل الإحالة: %s\nحد المكافأة الثابتة: %s\nفترة التوزيع: %d يوم\nالتوزيع القادم: %s",
		s.RatePercent, utils.FormatAmount(s.FixedBonusPerActiveReferral), s.MinActiveReferrals,
		utils.FormatAmount(s.MinChargePerReferral), utils.FormatAmount(s.FlatEligibilityFloor),
		s.DistributionPeriodDays, s.NextDistributionAt.Format("2006-01-02 15:04"))
}

func (h *HandlerManager) editCommission(ctx context.Context, adminID int64, text string, session *UserSession, bot BotInterface) {
	fields := strings.Fields(utils.NormalizeArabicNumbers(text))
	if len(fields) != 2 {
		bot.SendMessage(adminID, commissionHelp, nil)
		return
	}
	value, err := strconv.ParseInt(utils.StripThousands(fields[1]), 10, 64)
	if err != nil {
		bot.SendMessage(adminID, MsgInvalidNumber, nil)
		return
	}

	var change func(*models.CommissionSettings)
	switch strings.ToLower(fields[0]) {
	case "rate":
		change = func(s *models.CommissionSettings) { s.RatePercent = value }
	case "bonus":
		change = func(s *models.CommissionSettings) { s.FixedBonusPerActiveReferral = value }
	case "min_active":
		change = func(s *models.CommissionSettings) { s.MinActiveReferrals = int(value) }
	case "min_charge":
		change = func(s *models.CommissionSettings) { s.MinChargePerReferral = value }
	case "floor":
		change = func(s *models.CommissionSettings) { s.FlatEligibilityFloor = value }
	case "period":
		change = func(s *models.CommissionSettings) { s.DistributionPeriodDays = int(value) }
	default:
		bot.SendMessage(adminID, commissionHelp, nil)
		return
	}

	updated, err := h.Referrals.UpdateSettings(ctx, adminID, change)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	session.Reset()
	bot.SendMessage(adminID, "✅ تم الحفظ.\n\n"+formatCommission(updated), bot.GetAdminKeyboard())
}

func (h *HandlerManager) createGiftCode(ctx context.Context, adminID int64, text string, session *UserSession, bot BotInterface) {
	fields := strings.Fields(utils.NormalizeArabicNumbers(text))
	if len(fields) != 3 {
		bot.SendMessage(adminID, MsgInvalidNumber, nil)
		return
	}
	amount, okAmount := parseAmount(fields[0])
	uses, errUses := strconv.Atoi(fields[1])
	hours, errHours := strconv.Atoi(fields[2])
	if !okAmount || errUses != nil || errHours != nil {
		bot.SendMessage(adminID, MsgInvalidNumber, nil)
		return
	}
	gift, err := h.Gifts.CreateCode(ctx, amount, uses, time.Duration(hours)*time.Hour, adminID)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	session.Reset()
	bot.SendMessage(adminID, fmt.Sprintf("🎟 الكود: <code>%s</code>\nالقيمة: %s ل.س\nالاستخدامات: %d\nينتهي: %s",
		gift.Code, utils.FormatAmount(gift.Amount), gift.MaxUses, gift.ExpiresAt.Format("2006-01-02 15:04")), bot.GetAdminKeyboard())
}

func (h *HandlerManager) rejectWithReason(ctx context.Context, adminID int64, text string, session *UserSession, bot BotInterface) {
	txID, _ := session.Data[keyTxID].(uint)
	session.Reset()
	t, err := h.Ledger.Reject(ctx, txID, actorFor(adminID), security.SanitizeHTML(strings.TrimSpace(text)))
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), bot.GetAdminKeyboard())
		return
	}
	bot.SendMessage(adminID, fmt.Sprintf("❌ تم رفض الطلب <code>%s</code>.", orderLabel(t)), bot.GetAdminKeyboard())
	h.notifyOwner(ctx, t, bot)
}

func (h *HandlerManager) bindConfirmation(ctx context.Context, adminID int64, text string, session *UserSession, bot BotInterface) {
	confirmationID, _ := session.Data[keyConfirmation].(uint)
	t, err := h.findTransaction(ctx, strings.TrimSpace(text))
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	session.Reset()

	outcome, err := h.Matcher.ManualBind(ctx, confirmationID, t.ID, actorFor(adminID))
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), bot.GetAdminKeyboard())
		return
	}
	bot.SendMessage(adminID, fmt.Sprintf("🔗 تم ربط الرسالة بالطلب <code>%s</code>.", orderLabel(t)), bot.GetAdminKeyboard())
	if outcome.Processed() {
		h.notifyOwner(ctx, outcome.Transaction, bot)
	}
}

// findTransaction accepts an order number or a numeric transaction id.
func (h *HandlerManager) findTransaction(ctx context.Context, ref string) (*models.Transaction, error) {
	if id, ok := parseID(ref); ok {
		return h.Ledger.Get(ctx, id)
	}
	return h.Ledger.GetByOrderNumber(ctx, strings.ToUpper(ref))
}

func (h *HandlerManager) runSettlement(ctx context.Context, adminID int64, bot BotInterface) {
	result, err := h.Referrals.SettleNow(ctx)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	bot.SendMessage(adminID, fmt.Sprintf("💸 تم توزيع العمولات\nالمحيلون: %d\nالمدفوع: %s ل.س\nالدفعات: %d\nالأخطاء: %d\nالتوزيع القادم: %s",
		result.Referrers, utils.FormatAmount(result.Paid), len(result.Payouts), result.Failures,
		result.NextRunAt.Format("2006-01-02 15:04")), nil)

	for _, id := range result.Payouts {
		if t, err := h.Ledger.Get(ctx, id); err == nil {
			h.notifyOwner(ctx, t, bot)
		}
	}
}

func (h *HandlerManager) listUnmatched(ctx context.Context, adminID int64, bot BotInterface) {
	items, err := h.Matcher.ListUnmatched(ctx, adminListLimit)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	if len(items) == 0 {
		bot.SendMessage(adminID, "✅ لا توجد رسائل بحاجة لمراجعة.", nil)
		return
	}
	for _, c := range items {
		text := fmt.Sprintf("🔍 رسالة #%d (%s)\nالحالة: %s\n<code>%s</code>", c.ID, c.Provider, c.Status, security.SanitizeHTML(c.RawText))
		if c.Parsed {
			text += fmt.Sprintf("\nالمبلغ: %s\nرقم العملية: <code>%s</code>", utils.FormatAmount(c.Amount), c.Reference)
			bot.SendMessage(adminID, text, BindKeyboard(c.ID))
			continue
		}
		bot.SendMessage(adminID, text, nil)
	}
}

func (h *HandlerManager) sendDailyReport(ctx context.Context, adminID int64, day time.Time, bot BotInterface) {
	report, err := h.Reports.Daily(ctx, day)
	if err != nil {
		bot.SendMessage(adminID, ErrorMessage(err), nil)
		return
	}
	if err := sendReport(adminID, report, bot); err != nil {
		logger.Error("Failed to send daily report", "telegram_id", adminID, "error", err)
	}
	if total, recent, err := h.UserRepo.CountUsers(ctx, day.Add(-7*24*time.Hour)); err == nil {
		bot.SendMessage(adminID, fmt.Sprintf("👥 إجمالي المستخدمين: %d (آخر 7 أيام: %d)", total, recent), nil)
	}
}

func sendReport(chatID int64, report *services.DailyReport, bot BotInterface) error {
	bot.SendMessage(chatID, FormatDailyReport(report), nil)
	var buf bytes.Buffer
	if err := services.WriteDailyReportXLSX(&buf, report); err != nil {
		return err
	}
	name := fmt.Sprintf("report-%s.xlsx", report.Day.Format("2006-01-02"))
	return bot.SendDocument(chatID, name, buf.Bytes(), "📎 "+name)
}

// FormatDailyReport renders the operator summary message.
func FormatDailyReport(r *services.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 تقرير يوم %s\n\n", r.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "مستخدمون جدد: %d\n", r.NewUsers)
	fmt.Fprintf(&b, "الإيداعات: %d بقيمة %s ل.س\n", r.Deposits.Count, utils.FormatAmount(r.Deposits.Amount))
	fmt.Fprintf(&b, "السحوبات: %d بقيمة %s ل.س\n", r.Withdrawals.Count, utils.FormatAmount(r.Withdrawals.Amount))
	for _, k := range r.ByKind {
		if k.Kind == models.TxKindDeposit || k.Kind == models.TxKindWithdraw {
			continue
		}
		fmt.Fprintf(&b, "%s: %d بقيمة %s ل.س\n", kindLabels[k.Kind], k.Count, utils.FormatAmount(k.Amount))
	}
	fmt.Fprintf(&b, "طلبات معلقة: %d\n", r.Pending)
	fmt.Fprintf(&b, "\nالقنوات: %d نشطة من %d، الإشغال %.1f%%", r.Capacity.Active, r.Capacity.Channels, r.Capacity.FillPercent())
	return b.String()
}

func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// errNotAdmin is returned to callers outside the chat flow, such as the
// report notifier, when no operator is configured.
var errNotAdmin = apperrors.New(apperrors.ErrCodeForbidden, "no operators configured")
