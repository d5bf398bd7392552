package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const giftCodeLength = 7

type GiftService struct {
	db       *gorm.DB
	ledger   *Ledger
	users    *repositories.UserRepository
	payments config.PaymentSettings
	now      func() time.Time
}

func NewGiftService(db *gorm.DB, ledger *Ledger, payments config.PaymentSettings) *GiftService {
	return &GiftService{
		db:       db,
		ledger:   ledger,
		users:    repositories.NewUserRepository(db),
		payments: payments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateCode issues a redeemable code worth amount, usable maxUses times.
func (s *GiftService) CreateCode(ctx context.Context, amount int64, maxUses int, expiresIn time.Duration, createdBy int64) (*models.GiftCode, error) {
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "gift amount must be positive")
	}
	if maxUses <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "max uses must be positive")
	}
	if expiresIn <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "expiry must be in the future")
	}

	repo := repositories.NewGiftRepository(s.db)
	for attempt := 0; attempt < 5; attempt++ {
		code, err := security.GenerateSecureCode(giftCodeLength)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to generate gift code")
		}
		gift := &models.GiftCode{
			Code:      code,
			Amount:    amount,
			MaxUses:   maxUses,
			ExpiresAt: s.now().Add(expiresIn),
			CreatedBy: createdBy,
		}
		err = repo.Create(ctx, gift)
		if errors.Is(err, errors.ErrCodeAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Info("Gift code created", "code", code, "amount", amount, "max_uses", maxUses, "by", createdBy)
		return gift, nil
	}
	return nil, errors.New(errors.ErrCodeInternalError, "could not generate a unique gift code")
}

// Redeem credits the code's amount to the user as a bonus transaction.
func (s *GiftService) Redeem(ctx context.Context, userID uint, code string) (*models.Transaction, error) {
	code = security.NormalizeGiftCode(code)
	var bonus *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewGiftRepository(tx)
		gift, err := repo.LockByCode(ctx, code)
		if err != nil {
			return err
		}
		if gift.IsExpired(s.now()) {
			return errors.New(errors.ErrCodeGiftCodeExpired, "gift code expired")
		}
		used, err := repo.HasUsed(ctx, gift.ID, userID)
		if err != nil {
			return err
		}
		if used {
			return errors.New(errors.ErrCodeGiftCodeAlreadyUsed, "gift code already used")
		}
		if gift.IsExhausted() {
			return errors.New(errors.ErrCodeGiftCodeExhausted, "gift code has no uses left")
		}
		ok, err := repo.ConsumeUse(ctx, gift.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCodeGiftCodeExhausted, "gift code has no uses left")
		}

		opened, err := s.ledger.OpenTx(ctx, tx, OpenRequest{
			UserID: userID,
			Kind:   models.TxKindBonus,
			Amount: gift.Amount,
			Notes:  "gift code " + gift.Code,
		})
		if err != nil {
			return err
		}
		bonus, err = s.ledger.CompleteTx(ctx, tx, opened.ID, ActorGift)
		if err != nil {
			return err
		}
		return repo.RecordUsage(ctx, &models.GiftCodeUsage{GiftCodeID: gift.ID, UserID: userID, TransactionID: bonus.ID})
	})
	if err != nil {
		return nil, err
	}
	s.ledger.observeCompleted(bonus, ActorGift)
	return bonus, nil
}

// SendGift moves amount from sender to receiver; the receiver gets amount
// minus the gift fee.
func (s *GiftService) SendGift(ctx context.Context, senderID, receiverID uint, amount int64) (*models.Transaction, error) {
	if senderID == receiverID {
		return nil, errors.New(errors.ErrCodeValidation, "cannot gift yourself")
	}
	if amount <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "gift amount must be positive")
	}
	if _, err := s.users.GetUserByID(ctx, receiverID); err != nil {
		return nil, err
	}

	fee := percentOf(amount, s.payments.GiftFeePercent)
	net := amount - fee
	if net <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "gift amount too small after fee")
	}

	var sent *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		receiver := receiverID
		opened, err := s.ledger.OpenTx(ctx, tx, OpenRequest{
			UserID:         senderID,
			Kind:           models.TxKindGiftSent,
			Amount:         amount,
			NetAmount:      net,
			CounterpartyID: &receiver,
			Notes:          fmt.Sprintf("fee=%d", fee),
		})
		if err != nil {
			return err
		}
		sent, err = s.ledger.CompleteTx(ctx, tx, opened.ID, UserActor(senderID))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.observeCompleted(sent, UserActor(senderID))
	return sent, nil
}

// FindReceiver resolves the Telegram id a sender typed.
func (s *GiftService) FindReceiver(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.users.GetUserByTelegramID(ctx, telegramID)
}

func (s *GiftService) ListActiveCodes(ctx context.Context) ([]models.GiftCode, error) {
	return repositories.NewGiftRepository(s.db).ListActive(ctx, s.now())
}

// percentOf returns floor(amount * percent / 100).
func percentOf(amount, percent int64) int64 {
	if percent <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}
