package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/repositories"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"gorm.io/gorm"
)

// RawNotification is a provider message as forwarded by the SMS relay.
type RawNotification struct {
	Provider   string
	Sender     string
	Text       string
	ObservedAt time.Time
}

// MatchOutcome reports what happened to one notification.
type MatchOutcome struct {
	Confirmation *models.ProviderConfirmation
	Event        *ParsedEvent
	Transaction  *models.Transaction
	Status       string
}

// Processed reports whether the notification moved money.
func (o *MatchOutcome) Processed() bool {
	return o != nil && o.Status == models.ConfirmationMatched
}

// Matcher reconciles provider notifications with pending transactions.
type Matcher struct {
	db      *gorm.DB
	parser  *Parser
	ledger  *Ledger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewMatcher(db *gorm.DB, parser *Parser, ledger *Ledger, m *metrics.LedgerMetrics) *Matcher {
	return &Matcher{
		db:      db,
		parser:  parser,
		ledger:  ledger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores the raw notification and tries to complete the transaction
// it confirms. Unparsed text returns NO_MATCH and an amount disagreement
// returns RECONCILIATION_MISMATCH; both still return the outcome.
func (m *Matcher) Submit(ctx context.Context, n RawNotification) (*MatchOutcome, error) {
	provider, known := NormalizeProvider(n.Provider)
	if !known {
		provider = strings.ToLower(strings.TrimSpace(n.Provider))
	}
	observed := n.ObservedAt
	if observed.IsZero() {
		observed = m.now()
	}

	confirmation := &models.ProviderConfirmation{
		Provider:   provider,
		Sender:     n.Sender,
		RawText:    n.Text,
		ObservedAt: observed.UTC(),
		Status:     models.ConfirmationReceived,
	}
	confirmations := repositories.NewConfirmationRepository(m.db)
	if err := confirmations.Create(ctx, confirmation); err != nil {
		return nil, err
	}

	event, err := m.parser.Parse(n.Provider, n.Text)
	if err != nil {
		confirmation.Status = models.ConfirmationUnparsed
		confirmation.Note = err.Error()
		if rerr := confirmations.Resolve(ctx, confirmation.ID, confirmation.Status, nil, "", confirmation.Note); rerr != nil {
			return nil, rerr
		}
		m.metrics.ObserveConfirmation(provider, confirmation.Status)
		logger.Warn("Provider notification not parsed", "confirmation_id", confirmation.ID, "provider", provider, "error", err)
		return &MatchOutcome{Confirmation: confirmation, Status: confirmation.Status}, err
	}

	confirmation.Parsed = true
	confirmation.Pattern = event.Pattern
	confirmation.Amount = event.Amount
	confirmation.Counterparty = event.Counterparty
	confirmation.Reference = event.Reference
	if err := m.db.WithContext(ctx).Model(confirmation).Updates(map[string]interface{}{
		"parsed":       true,
		"pattern":      event.Pattern,
		"amount":       event.Amount,
		"counterparty": event.Counterparty,
		"reference":    event.Reference,
	}).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to store parsed confirmation")
	}

	return m.resolve(ctx, confirmation, event, nil, false, AutoActor(event.Provider))
}

// Resolve retries matching for a stored, parsed confirmation.
func (m *Matcher) Resolve(ctx context.Context, confirmationID uint) (*MatchOutcome, error) {
	confirmation, err := repositories.NewConfirmationRepository(m.db).GetByID(ctx, confirmationID)
	if err != nil {
		return nil, err
	}
	if !confirmation.Parsed {
		return nil, noMatch("confirmation was never parsed")
	}
	return m.resolve(ctx, confirmation, eventOf(confirmation), nil, false, AutoActor(confirmation.Provider))
}

// ManualBind lets an operator attach a parsed confirmation that found no
// transaction to a specific pending deposit. The deposit takes over the
// confirmation's reference, so the same payment cannot be claimed again.
func (m *Matcher) ManualBind(ctx context.Context, confirmationID, txID uint, operator string) (*MatchOutcome, error) {
	confirmation, err := repositories.NewConfirmationRepository(m.db).GetByID(ctx, confirmationID)
	if err != nil {
		return nil, err
	}
	if !confirmation.Parsed {
		return nil, errors.New(errors.ErrCodeValidation, "only parsed confirmations can be bound")
	}
	if confirmation.Status == models.ConfirmationMatched {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "confirmation already matched")
	}
	t, err := m.ledger.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Kind != models.TxKindDeposit {
		return nil, errors.New(errors.ErrCodeValidation, "only deposits can be bound to a provider confirmation")
	}
	if t.Provider != confirmation.Provider {
		return nil, errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("transaction provider %s does not match confirmation provider %s", t.Provider, confirmation.Provider))
	}
	return m.resolve(ctx, confirmation, eventOf(confirmation), t, true, operator)
}

// ManualVerify completes the pending transaction carrying a reference without
// any provider message, as operators do when the relay is down.
func (m *Matcher) ManualVerify(ctx context.Context, provider, reference, operator string) (*models.Transaction, error) {
	key, ok := NormalizeProvider(provider)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownProvider, fmt.Sprintf("unknown provider %q", provider))
	}
	t, err := m.ledger.FindPendingByReference(ctx, key, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	return m.ledger.Complete(ctx, t.ID, operator)
}

func (m *Matcher) ListUnmatched(ctx context.Context, limit int) ([]models.ProviderConfirmation, error) {
	return repositories.NewConfirmationRepository(m.db).ListForReview(ctx, limit)
}

// TestParse runs the parser without storing anything.
func (m *Matcher) TestParse(provider, text string) (*ParsedEvent, error) {
	return m.parser.Parse(provider, text)
}

// resolve finds (or uses the given) pending transaction, checks the amount,
// and completes it together with the confirmation's status change. With
// bind set the event's reference is written onto the target first.
func (m *Matcher) resolve(ctx context.Context, c *models.ProviderConfirmation, event *ParsedEvent, target *models.Transaction, bind bool, actor string) (*MatchOutcome, error) {
	out := &MatchOutcome{Confirmation: c, Event: event}

	if target == nil {
		t, err := m.ledger.FindPendingByReference(ctx, event.Provider, event.Reference)
		if err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		target = t
	}

	if target == nil {
		status := models.ConfirmationUnmatched
		var txID *uint
		done, err := repositories.NewTransactionRepository(m.db).FindCompletedByReference(ctx, event.Provider, event.Reference)
		if err != nil {
			return nil, err
		}
		if done != nil {
			status = models.ConfirmationDuplicate
			txID = &done.ID
			out.Transaction = done
		}
		if err := m.finish(ctx, m.db, c, status, txID, "", "no pending transaction for reference"); err != nil {
			return nil, err
		}
		out.Status = status
		logger.Info("Provider notification without pending transaction",
			"confirmation_id", c.ID, "provider", event.Provider, "reference", event.Reference, "status", status)
		return out, nil
	}

	if target.Status != models.TxStatusPending {
		status := models.ConfirmationDuplicate
		if target.Status == models.TxStatusRejected {
			status = models.ConfirmationUnmatched
		}
		if err := m.finish(ctx, m.db, c, status, &target.ID, "", "transaction is "+target.Status); err != nil {
			return nil, err
		}
		out.Status = status
		out.Transaction = target
		return out, nil
	}

	if target.Amount != event.Amount {
		note := fmt.Sprintf("expected %d, observed %d", target.Amount, event.Amount)
		if err := m.finish(ctx, m.db, c, models.ConfirmationMismatch, &target.ID, "", note); err != nil {
			return nil, err
		}
		out.Status = models.ConfirmationMismatch
		out.Transaction = target
		logger.Warn("Provider amount does not match transaction",
			"confirmation_id", c.ID, "tx_id", target.ID, "expected", target.Amount, "observed", event.Amount)
		return out, errors.New(errors.ErrCodeReconciliationMismatch, note).
			WithDetail("expected", target.Amount).
			WithDetail("observed", event.Amount).
			WithDetail("tx_id", target.ID)
	}

	var completed *models.Transaction
	var changed bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if bind {
			if err := bindReference(ctx, tx, target, event); err != nil {
				return err
			}
		}
		var err error
		completed, changed, err = m.ledger.complete(ctx, tx, target.ID, actor)
		if err != nil {
			return err
		}
		status := models.ConfirmationMatched
		if !changed {
			status = models.ConfirmationDuplicate
		}
		out.Status = status
		return m.finish(ctx, tx, c, status, &completed.ID, actor, "")
	})
	if err != nil {
		return nil, err
	}
	if changed {
		m.ledger.observeCompleted(completed, actor)
	}
	out.Transaction = completed
	return out, nil
}

// bindReference records the confirmed reference on a pending transaction,
// refusing a reference another live transaction already carries.
func bindReference(ctx context.Context, tx *gorm.DB, target *models.Transaction, event *ParsedEvent) error {
	if event.Reference == "" {
		return nil
	}
	repo := repositories.NewTransactionRepository(tx)
	t, err := repo.Lock(ctx, target.ID)
	if err != nil {
		return err
	}
	if t.Reference() == event.Reference {
		return nil
	}
	inUse, err := repo.ReferenceInUse(ctx, t.Provider, event.Reference, t.ID)
	if err != nil {
		return err
	}
	if inUse {
		return errors.New(errors.ErrCodeDuplicateReference,
			fmt.Sprintf("reference %s already used for %s", event.Reference, t.Provider))
	}
	return repo.SetReference(ctx, t.ID, event.Reference)
}

func (m *Matcher) finish(ctx context.Context, db *gorm.DB, c *models.ProviderConfirmation, status string, txID *uint, by, note string) error {
	if err := repositories.NewConfirmationRepository(db).Resolve(ctx, c.ID, status, txID, by, note); err != nil {
		return err
	}
	c.Status = status
	c.TransactionID = txID
	c.ResolvedBy = by
	c.Note = note
	m.metrics.ObserveConfirmation(c.Provider, status)
	return nil
}

func eventOf(c *models.ProviderConfirmation) *ParsedEvent {
	return &ParsedEvent{
		Provider:     c.Provider,
		Amount:       c.Amount,
		Counterparty: c.Counterparty,
		Reference:    c.Reference,
		Pattern:      c.Pattern,
	}
}
