package Models

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNegativeCommission = errors.New("Commission amount cannot be negative")

type TreatmentGroup struct {
	gorm.Model
	Name             string          `gorm:"size:100;not null" json:"name"`
	Description      string          `json:"description"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"commission_amount"`
	Treatments       []Treatment     `gorm:"foreignKey:GroupID" json:"treatments,omitempty"`
}

type Treatment struct {
	gorm.Model
	Name            string          `gorm:"size:100;not null" json:"name"`
	Description     string          `json:"description"`
	Active          bool            `json:"active"`
	GroupID         *uint           `gorm:"index" json:"group_id"`
	Group           *TreatmentGroup `json:"group,omitempty"`
	AverageDuration *int            `json:"average_duration"` // days
}

// TreatmentNameMapping maps a treatment name used by the CRM to a group.
type TreatmentNameMapping struct {
	gorm.Model
	ExternalName     string          `gorm:"size:200;not null;unique" json:"external_name"`
	TreatmentGroupID uint            `gorm:"not null" json:"treatment_group_id"`
	TreatmentGroup   *TreatmentGroup `json:"treatment_group,omitempty"`
}

func (group *TreatmentGroup) Validate() error {
	if group.CommissionAmount.IsNegative() {
		return ErrNegativeCommission
	}
	if group.Name == "" {
		return errors.New("Group name is required")
	}
	return nil
}

func GetActiveTreatments(db *gorm.DB) ([]Treatment, error) {
	var treatments []Treatment
	err := db.Preload("Group").Where("active = ?", true).Order("name").Find(&treatments).Error
	return treatments, err
}

// FindMappingByExternalName matches the CRM name case-insensitively.
func FindMappingByExternalName(db *gorm.DB, name string) (*TreatmentNameMapping, error) {
	var mapping TreatmentNameMapping
	err := db.Preload("TreatmentGroup").
		Where("LOWER(external_name) = LOWER(?)", name).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func FirstActiveTreatmentInGroup(db *gorm.DB, groupID uint) (*Treatment, error) {
	var treatment Treatment
	err := db.Preload("Group").Where("group_id = ? AND active = ?", groupID, true).Order("id").First(&treatment).Error
	if err != nil {
		return nil, err
	}
	return &treatment, nil
}

// RecalculateGroupCommissions re-runs the commission engine for every completed
// referral whose treatment belongs to the group. Failures are collected, not fatal.
func RecalculateGroupCommissions(db *gorm.DB, groupID uint) (int, []error) {
	var referrals []Referral
	err := referralPreloads(db).
		Joins("JOIN treatments ON treatments.id = referrals.treatment_id").
		Where("treatments.group_id = ? AND referrals.status = ?", groupID, StatusCompleted).
		Find(&referrals).Error
	if err != nil {
		return 0, []error{err}
	}
	return recalculate(db, referrals)
}

// RecalculateTreatmentCommissions does the same for a single treatment.
func RecalculateTreatmentCommissions(db *gorm.DB, treatmentID uint) (int, []error) {
	var referrals []Referral
	err := referralPreloads(db).
		Where("treatment_id = ? AND status = ?", treatmentID, StatusCompleted).
		Find(&referrals).Error
	if err != nil {
		return 0, []error{err}
	}
	return recalculate(db, referrals)
}

func recalculate(db *gorm.DB, referrals []Referral) (int, []error) {
	var errs []error
	updated := 0
	for i := range referrals {
		if err := referrals[i].CalculateAndUpdateCommission(db, SourceRecalculation); err != nil {
			errs = append(errs, err)
			continue
		}
		updated++
	}
	return updated, errs
}
