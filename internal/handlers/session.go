package handlers

type UserSession struct {
	State string
	Data  map[string]interface{}
}

func NewSession() *UserSession {
	return &UserSession{Data: make(map[string]interface{})}
}

func (s *UserSession) Reset() {
	s.State = StateNone
	s.Data = make(map[string]interface{})
}

// Conversation states
const (
	StateNone = ""

	StateDepositAmount    = "deposit_amount"
	StateDepositReference = "deposit_reference"
	StateWithdrawAmount   = "withdraw_amount"
	StateWithdrawPhone    = "withdraw_phone"
	StateAccountUsername  = "account_username"
	StateRedeemCode       = "redeem_code"
	StateGiftReceiver     = "gift_receiver"
	StateGiftAmount       = "gift_amount"

	StateAdminAddChannel  = "admin_add_channel"
	StateAdminCommission  = "admin_commission"
	StateAdminGiftCode    = "admin_gift_code"
	StateAdminRejectNote  = "admin_reject_note"
	StateAdminBindConfirm = "admin_bind_confirmation"
)

// Session data keys
const (
	keyMethod   = "method"
	keyAmount   = "amount"
	keyTxID     = "tx_id"
	keyReceiver = "receiver_id"

	keyConfirmation = "confirmation_id"
)
