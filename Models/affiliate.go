package Models

import (
	"errors"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const SlugLength = 8

type Affiliate struct {
	gorm.Model
	UserID        uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	User          *User           `json:"user,omitempty"`
	Slug          string          `gorm:"size:20;unique" json:"slug"`
	Approved      bool            `json:"approved"`
	TotalEarnings decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_earnings"`

	// Location of the registration request
	Country   string   `gorm:"size:2" json:"country"`
	City      string   `gorm:"size:100" json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	IPAddress string   `gorm:"size:45" json:"ip_address"`

	Referrals []Referral `json:"referrals,omitempty"`
}

// GenerateUniqueSlug draws random slugs until one is unused.
func GenerateUniqueSlug(db *gorm.DB) (string, error) {
	for {
		slug := Utils.RandomSlug(SlugLength)
		var count int64
		if err := db.Model(&Affiliate{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}
}

// EnsureAffiliate returns the user's affiliate profile, creating one if missing.
func EnsureAffiliate(db *gorm.DB, userID uint) (*Affiliate, error) {
	var affiliate Affiliate
	err := db.Where("user_id = ?", userID).First(&affiliate).Error
	if err == nil {
		return &affiliate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	slug, err := GenerateUniqueSlug(db)
	if err != nil {
		return nil, err
	}
	affiliate = Affiliate{UserID: userID, Slug: slug}
	if err := db.Create(&affiliate).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func GetAffiliateBySlug(db *gorm.DB, slug string) (*Affiliate, error) {
	var affiliate Affiliate
	if err := db.Where("slug = ?", slug).First(&affiliate).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// CalculateCommission returns the fixed amount of the treatment's group, or zero
// when the treatment, its group or a positive amount is missing.
func CalculateCommission(treatment *Treatment) decimal.Decimal {
	if treatment == nil {
		Logging.Logger.Error("Treatment object is missing")
		return decimal.Zero
	}
	if treatment.Group == nil {
		Logging.Logger.Error("Treatment has no associated group", zap.Uint("treatment_id", treatment.ID))
		return decimal.Zero
	}
	if !treatment.Group.CommissionAmount.IsPositive() {
		Logging.Logger.Error("Treatment group has invalid commission amount",
			zap.Uint("group_id", treatment.Group.ID),
			zap.String("commission_amount", treatment.Group.CommissionAmount.String()))
		return decimal.Zero
	}
	return treatment.Group.CommissionAmount
}

// UpdateEarnings recomputes TotalEarnings as the sum of commissions over the
// affiliate's completed referrals.
func (affiliate *Affiliate) UpdateEarnings(db *gorm.DB) error {
	var commissions []decimal.Decimal
	if err := db.Model(&Referral{}).
		Where("affiliate_id = ? AND status = ?", affiliate.ID, StatusCompleted).
		Pluck("commission_amount", &commissions).Error; err != nil {
		Logging.Logger.Error("Database error updating earnings", zap.Uint("affiliate_id", affiliate.ID), zap.Error(err))
		return err
	}

	total := decimal.Zero
	for _, commission := range commissions {
		if commission.IsPositive() {
			total = total.Add(commission)
		}
	}

	if err := db.Model(affiliate).UpdateColumn("total_earnings", total).Error; err != nil {
		Logging.Logger.Error("Database error updating earnings", zap.Uint("affiliate_id", affiliate.ID), zap.Error(err))
		return err
	}
	affiliate.TotalEarnings = total

	Logging.Logger.Info("Updated total earnings",
		zap.Uint("affiliate_id", affiliate.ID),
		zap.String("total_earnings", total.StringFixed(2)))
	return nil
}

// ReconcileEarnings recomputes every affiliate's balance and returns the IDs whose
// stored value had drifted.
func ReconcileEarnings(db *gorm.DB) ([]uint, error) {
	var affiliates []Affiliate
	if err := db.Find(&affiliates).Error; err != nil {
		return nil, err
	}

	var drifted []uint
	for i := range affiliates {
		before := affiliates[i].TotalEarnings
		if err := affiliates[i].UpdateEarnings(db); err != nil {
			return drifted, err
		}
		if !before.Equal(affiliates[i].TotalEarnings) {
			drifted = append(drifted, affiliates[i].ID)
		}
	}
	return drifted, nil
}

// ApproveAffiliate marks the affiliate approved and its user's email verified.
func ApproveAffiliate(db *gorm.DB, affiliateID uint) (*Affiliate, error) {
	var affiliate Affiliate
	if err := db.Preload("User").First(&affiliate, affiliateID).Error; err != nil {
		return nil, err
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&affiliate).Update("approved", true).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", affiliate.UserID).Update("email_verified", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// RejectAffiliate removes the affiliate profile. The user account is kept.
func RejectAffiliate(db *gorm.DB, affiliateID uint) error {
	result := db.Delete(&Affiliate{}, affiliateID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func PendingAffiliates(db *gorm.DB) ([]Affiliate, error) {
	var affiliates []Affiliate
	err := db.Preload("User").Where("approved = ?", false).Order("created_at DESC").Find(&affiliates).Error
	return affiliates, err
}
