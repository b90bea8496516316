package Models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionEntry is an append-only audit record of every commission applied.
// Balances are still derived from referrals; entries only explain them.
type CommissionEntry struct {
	gorm.Model
	ReferralID  uint            `gorm:"not null;index" json:"referral_id"`
	AffiliateID uint            `gorm:"not null;index" json:"affiliate_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Source      string          `gorm:"size:20;not null" json:"source"`
}

func ListCommissionEntries(db *gorm.DB, affiliateID uint) ([]CommissionEntry, error) {
	var entries []CommissionEntry
	err := db.Where("affiliate_id = ?", affiliateID).Order("created_at DESC").Find(&entries).Error
	return entries, err
}
