package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// CreateLink stores referrer -> referred. A user can be referred only once.
func (r *ReferralRepository) CreateLink(ctx context.Context, link *models.ReferralLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeDuplicateReferral, "user already has a referrer")
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create referral link")
	}
	return nil
}

func (r *ReferralRepository) GetLinkByReferred(ctx context.Context, referredID uint) (*models.ReferralLink, error) {
	var link models.ReferralLink
	result := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&link)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "referral link not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get referral link")
	}
	return &link, nil
}

// AddCharge bumps cumulative_charged for the referred user's link and
// recomputes is_active against minCharge. Users without a referrer are a no-op.
func (r *ReferralRepository) AddCharge(ctx context.Context, referredID uint, amount, minCharge int64) error {
	result := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("referred_id = ?", referredID).
		Updates(map[string]interface{}{
			"cumulative_charged": gorm.Expr("cumulative_charged + ?", amount),
			"is_active":          gorm.Expr("cumulative_charged + ? >= ?", amount, minCharge),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to record referral charge")
	}
	return nil
}

// LinksOf returns every link owned by a referrer, oldest first. With lock set
// the rows stay locked for the caller's transaction.
func (r *ReferralRepository) LinksOf(ctx context.Context, referrerID uint, lock bool) ([]models.ReferralLink, error) {
	q := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).Order("id ASC")
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var links []models.ReferralLink
	if err := q.Find(&links).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list referral links")
	}
	return links, nil
}

// ReferrersToSettle lists referrers with charge not yet paid by the
// percentage model, or with a link past flatFloor whose flat bonus is unpaid.
func (r *ReferralRepository) ReferrersToSettle(ctx context.Context, flatFloor int64) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("cumulative_charged > settled_charged OR (flat_paid = ? AND cumulative_charged >= ?)", false, flatFloor).
		Distinct("referrer_id").
		Order("referrer_id ASC").
		Pluck("referrer_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list referrers")
	}
	return ids, nil
}

// RefreshActive recomputes is_active on every link against minCharge.
func (r *ReferralRepository) RefreshActive(ctx context.Context, minCharge int64) error {
	result := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("id > 0").
		UpdateColumn("is_active", gorm.Expr("cumulative_charged >= ?", minCharge))
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to refresh referral activity")
	}
	return nil
}

// MarkFlatPaid flags a link's flat bonus as paid. It reports false when the
// bonus was already paid.
func (r *ReferralRepository) MarkFlatPaid(ctx context.Context, linkID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("id = ? AND flat_paid = ?", linkID, false).
		UpdateColumn("flat_paid", true)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to mark flat bonus")
	}
	return result.RowsAffected == 1, nil
}

// AdvanceSettled moves a link's watermark from `from` to `to`. It reports
// false when another settlement already moved it.
func (r *ReferralRepository) AdvanceSettled(ctx context.Context, linkID uint, from, to int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("id = ? AND settled_charged = ?", linkID, from).
		Updates(map[string]interface{}{"settled_charged": to, "last_settled_at": at})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to advance settlement")
	}
	return result.RowsAffected == 1, nil
}

// ReferrerStat is one row of the top referrers board.
type ReferrerStat struct {
	ReferrerID   uint
	Referrals    int64
	Active       int64
	TotalCharged int64
}

func (r *ReferralRepository) TopReferrers(ctx context.Context, limit int) ([]ReferrerStat, error) {
	var stats []ReferrerStat
	err := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Select("referrer_id, COUNT(*) AS referrals, " +
			"SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active, " +
			"COALESCE(SUM(cumulative_charged), 0) AS total_charged").
		Group("referrer_id").
		Order("active DESC").
		Order("total_charged DESC").
		Order("referrer_id ASC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to rank referrers")
	}
	return stats, nil
}

func (r *ReferralRepository) GetSettings(ctx context.Context) (*models.CommissionSettings, error) {
	var settings models.CommissionSettings
	result := r.db.WithContext(ctx).Order("id ASC").First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "commission settings not initialised")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get commission settings")
	}
	return &settings, nil
}

func (r *ReferralRepository) SaveSettings(ctx context.Context, settings *models.CommissionSettings) error {
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save commission settings")
	}
	return nil
}

// LockSettings reads the settings row and holds its lock for the caller's
// transaction, which serialises settlement runs.
func (r *ReferralRepository) LockSettings(ctx context.Context) (*models.CommissionSettings, error) {
	var settings models.CommissionSettings
	result := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Order("id ASC").First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "commission settings not initialised")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock commission settings")
	}
	return &settings, nil
}

func (r *ReferralRepository) SetDistribution(ctx context.Context, id uint, next, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.CommissionSettings{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"next_distribution_at": next, "last_distribution_at": at})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to advance distribution")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
