package handlers

import (
	"fmt"

	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
)

// Main menu buttons
const (
	BtnBalance    = "💰 رصيدي"
	BtnDeposit    = "📥 شحن الرصيد"
	BtnWithdraw   = "📤 سحب الرصيد"
	BtnAccount    = "🆔 إنشاء حساب"
	BtnRedeem     = "🎁 كود هدية"
	BtnSendGift   = "💝 إهداء رصيد"
	BtnReferral   = "👥 الإحالات"
	BtnHistory    = "🧾 سجل العمليات"
	BtnHelp       = "❓ المساعدة"
	BtnAdminPanel = "⚙️ لوحة التحكم"
	BtnCancel     = "❌ إلغاء"
)

// Admin panel buttons
const (
	BtnAdminPendingDeposits  = "📥 الإيداعات المعلقة"
	BtnAdminPendingWithdraws = "📤 السحوبات المعلقة"
	BtnAdminChannels         = "📡 القنوات"
	BtnAdminAddChannel       = "➕ إضافة قناة"
	BtnAdminResetChannels    = "♻️ تصفير القنوات"
	BtnAdminCommission       = "📊 إعدادات العمولة"
	BtnAdminGiftCode         = "🎟 إنشاء كود هدية"
	BtnAdminStats            = "📈 تقرير اليوم"
	BtnAdminSettle           = "💸 توزيع العمولات"
	BtnAdminUnmatched        = "🔍 رسائل غير مطابقة"
	BtnBack                  = "🔙 رجوع"
)

const (
	MsgWelcome        = "👋 أهلاً بك %s!\n\nمن القائمة يمكنك شحن رصيدك وسحبه وإهداء الأصدقاء."
	MsgMainMenu       = "🏠 القائمة الرئيسية"
	MsgCancel         = "❌ تم الإلغاء."
	MsgBanned         = "⛔️ حسابك موقوف. تواصل مع الدعم."
	MsgRateLimited    = "⏳ طلبات كثيرة، انتظر قليلاً ثم حاول مجدداً."
	MsgAdminOnly      = "❌ هذا الأمر للمشرفين فقط."
	MsgChooseMethod   = "اختر طريقة الدفع:"
	MsgNoMethods      = "⚠️ لا توجد طرق دفع متاحة حالياً."
	MsgEnterAmount    = "💵 أرسل المبلغ (بين %s و %s ل.س):"
	MsgInvalidNumber  = "⚠️ أرسل رقماً صحيحاً."
	MsgEnterReference = "🔢 أرسل رقم عملية التحويل بعد الدفع."
	MsgEnterPhone     = "📱 أرسل رقم الهاتف الذي تريد الاستلام عليه:"
	MsgEnterGiftCode  = "🎁 أرسل كود الهدية:"
	MsgEnterReceiver  = "👤 أرسل معرّف تيليجرام (رقم) للمستلم:"
	MsgEnterUsername  = "🆔 أرسل اسم المستخدم الذي تريده لحسابك:"
	MsgAccountExists  = "✅ لديك حساب بالفعل باسم %s."
	MsgAccountCreated = "✅ تم إنشاء حسابك باسم %s."
	MsgHelp           = "ℹ️ للشحن: اختر طريقة الدفع وحوّل المبلغ إلى الرقم الظاهر ثم أرسل رقم العملية.\nللسحب: أرسل المبلغ ورقم هاتفك وسيتم التحويل بعد المراجعة."
	MsgAdminPanel     = "⚙️ لوحة التحكم"
)

// ErrorMessage turns a service error into the message shown in chat.
func ErrorMessage(err error) string {
	appErr, ok := errors.As(err)
	if !ok {
		return "❌ حدث خطأ غير متوقع، حاول لاحقاً."
	}
	switch appErr.Code {
	case errors.ErrCodeInsufficientFunds:
		return "❌ رصيدك غير كافٍ."
	case errors.ErrCodeNoCapacity:
		if headroom, ok := services.MaxHeadroomOf(err); ok && headroom > 0 {
			return fmt.Sprintf("⚠️ لا توجد قناة تستوعب هذا المبلغ حالياً. أقصى مبلغ متاح: %s ل.س", utils.FormatAmount(headroom))
		}
		return "⚠️ لا توجد قنوات متاحة حالياً، حاول لاحقاً."
	case errors.ErrCodeFeatureDisabled:
		return "⛔️ هذه الخدمة متوقفة مؤقتاً."
	case errors.ErrCodeAccountMissing:
		return "⚠️ يجب إنشاء حساب أولاً."
	case errors.ErrCodeDuplicateReference:
		return "⚠️ رقم العملية مستخدم من قبل."
	case errors.ErrCodeDuplicateReferral:
		return "⚠️ أنت مسجل كإحالة مسبقاً."
	case errors.ErrCodeGiftCodeNotFound:
		return "❌ الكود غير صحيح."
	case errors.ErrCodeGiftCodeExpired:
		return "⌛️ انتهت صلاحية الكود."
	case errors.ErrCodeGiftCodeAlreadyUsed:
		return "⚠️ استخدمت هذا الكود من قبل."
	case errors.ErrCodeGiftCodeExhausted:
		return "⚠️ نفدت استخدامات هذا الكود."
	case errors.ErrCodeInvalidTransition:
		return "⚠️ تمت معالجة هذه العملية مسبقاً."
	case errors.ErrCodeReconciliationMismatch:
		return "⚠️ المبلغ لا يطابق الطلب."
	case errors.ErrCodeNotFound:
		return "❌ غير موجود."
	case errors.ErrCodeForbidden:
		return "⛔️ غير مسموح."
	case errors.ErrCodeValidation:
		if lo, ok := appErr.Details["min"].(int64); ok {
			hi, _ := appErr.Details["max"].(int64)
			return fmt.Sprintf("⚠️ المبلغ يجب أن يكون بين %s و %s ل.س", utils.FormatAmount(lo), utils.FormatAmount(hi))
		}
		return "⚠️ البيانات غير صحيحة."
	case errors.ErrCodeRateLimitExceeded:
		return MsgRateLimited
	}
	return "❌ حدث خطأ غير متوقع، حاول لاحقاً."
}
