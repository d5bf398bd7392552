package services

import (
	"context"
	"fmt"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
	"gorm.io/gorm"
)

// AccountDirectory answers whether a user already has an account on the
// remote platform. Deposits and withdrawals require one.
type AccountDirectory interface {
	Exists(ctx context.Context, userID uint) (bool, error)
}

// NewAccountDirectory returns the directory backed by the provider_accounts table.
func NewAccountDirectory(db *gorm.DB) AccountDirectory {
	return repositories.NewAccountRepository(db)
}

// PaymentService checks the operator switches and limits before handing
// deposit and withdrawal requests to the ledger.
type PaymentService struct {
	ledger    *Ledger
	accounts  AccountDirectory
	settings  config.PaymentSettings
	payoutKey []byte
}

func NewPaymentService(ledger *Ledger, accounts AccountDirectory, settings config.PaymentSettings, payoutKey []byte) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		accounts:  accounts,
		settings:  settings,
		payoutKey: payoutKey,
	}
}

// Methods lists the payment methods shown to users.
func (s *PaymentService) Methods() []string {
	var out []string
	for _, key := range s.settings.VisibleMethods() {
		if m, _ := s.settings.Method(key); m.Enabled {
			out = append(out, key)
		}
	}
	return out
}

func (s *PaymentService) Method(key string) (config.MethodSettings, bool) {
	return s.settings.Method(key)
}

// OpenDepositRequest opens a pending deposit. Channel-routed methods get a
// channel assigned here; reference may be empty and attached later.
func (s *PaymentService) OpenDepositRequest(ctx context.Context, userID uint, amount int64, method, reference string) (*models.Transaction, error) {
	if !s.settings.DepositEnabled {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "deposits are disabled")
	}
	if err := s.checkRequest(ctx, userID, amount, method); err != nil {
		return nil, err
	}
	if reference != "" && !security.ValidateReference(reference) {
		return nil, errors.New(errors.ErrCodeValidation, "invalid operation number")
	}
	return s.ledger.Open(ctx, OpenRequest{
		UserID:            userID,
		Kind:              models.TxKindDeposit,
		Amount:            amount,
		Provider:          method,
		ExternalReference: reference,
	})
}

// OpenWithdrawRequest debits amount now; the user is paid amount minus the
// withdrawal fee once an operator completes it.
func (s *PaymentService) OpenWithdrawRequest(ctx context.Context, userID uint, amount int64, method, payoutDetails string) (*models.Transaction, error) {
	if !s.settings.WithdrawEnabled {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "withdrawals are disabled")
	}
	if err := s.checkRequest(ctx, userID, amount, method); err != nil {
		return nil, err
	}
	payoutDetails = security.SanitizeString(payoutDetails)
	if !security.ValidatePhoneNumber(payoutDetails) {
		return nil, errors.New(errors.ErrCodeValidation, "invalid payout phone number")
	}

	fee := percentOf(amount, s.settings.WithdrawFeePercent)
	net := amount - fee
	if net <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "amount too small after fee")
	}

	sealed, err := security.EncryptAES256(payoutDetails, s.payoutKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to protect payout details")
	}
	return s.ledger.Open(ctx, OpenRequest{
		UserID:        userID,
		Kind:          models.TxKindWithdraw,
		Amount:        amount,
		NetAmount:     net,
		Provider:      method,
		PayoutDetails: sealed,
		Notes:         fmt.Sprintf("fee=%d", fee),
	})
}

// AttachReference records the operation number a user reports after paying.
func (s *PaymentService) AttachReference(ctx context.Context, userID, txID uint, reference string) error {
	if !security.ValidateReference(reference) {
		return errors.New(errors.ErrCodeValidation, "invalid operation number")
	}
	t, err := s.ledger.Get(ctx, txID)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return errors.New(errors.ErrCodeForbidden, "transaction belongs to another user")
	}
	return s.ledger.AttachReference(ctx, txID, reference)
}

// PayoutDetails decrypts the destination stored on a withdrawal.
func (s *PaymentService) PayoutDetails(t *models.Transaction) (string, error) {
	if t.PayoutDetails == "" {
		return "", nil
	}
	return security.DecryptAES256(t.PayoutDetails, s.payoutKey)
}

func (s *PaymentService) checkRequest(ctx context.Context, userID uint, amount int64, method string) error {
	m, ok := s.settings.Method(method)
	if !ok {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("unknown payment method %q", method))
	}
	if !m.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, fmt.Sprintf("%s is disabled", method))
	}
	if amount < m.MinAmount || amount > m.MaxAmount {
		return errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("amount must be between %s and %s", utils.FormatAmount(m.MinAmount), utils.FormatAmount(m.MaxAmount))).
			WithDetail("min", m.MinAmount).
			WithDetail("max", m.MaxAmount)
	}
	exists, err := s.accounts.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New(errors.ErrCodeAccountMissing, "create an account before moving money")
	}
	return nil
}
