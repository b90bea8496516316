package Models

import (
	"errors"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Monitoring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusNew        = "new"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

var ValidStatuses = []string{StatusNew, StatusInProgress, StatusCompleted}

// Commission sources recorded on the ledger.
const (
	SourceStatusUpdate  = "status_update"
	SourceAPI           = "api"
	SourceCRMWebhook    = "crm_webhook"
	SourceRecalculation = "recalculation"
)

// Commission failure reasons. The messages are shown to users as-is.
var (
	ErrMissingTreatment     = errors.New("Missing treatment information")
	ErrMissingGroup         = errors.New("Treatment has no group assigned")
	ErrMissingCommission    = errors.New("Treatment group has no commission amount")
	ErrInvalidCommission    = errors.New("Invalid commission amount")
	ErrMissingAffiliate     = errors.New("Missing affiliate information")
	ErrNotCompleted         = errors.New("Referral is not completed")
	ErrCommissionDatabase   = errors.New("Database error occurred")
	ErrInvalidStatus        = errors.New("Invalid status value")
	ErrInactiveTreatment    = errors.New("Invalid or inactive treatment")
	ErrMissingReferralField = errors.New("Missing required fields")
)

type Referral struct {
	gorm.Model
	AffiliateID      uint             `gorm:"not null;index" json:"affiliate_id"`
	Affiliate        *Affiliate       `json:"affiliate,omitempty"`
	TreatmentID      uint             `gorm:"not null;index" json:"treatment_id"`
	Treatment        *Treatment       `json:"treatment,omitempty"`
	Name             string           `gorm:"size:64;not null" json:"name"`
	Surname          string           `gorm:"size:64;not null" json:"surname"`
	Email            string           `gorm:"size:120;not null;index" json:"email"`
	Phone            string           `gorm:"size:20;not null" json:"phone"`
	Status           string           `gorm:"size:20;not null;default:new;index" json:"status"`
	CommissionAmount decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"commission_amount"`
	TreatmentValue   decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"treatment_value"`
	TreatmentStatus  *TreatmentStatus `json:"treatment_status,omitempty"`

	IPAddress string   `gorm:"size:45" json:"-"`
	Country   string   `gorm:"size:2" json:"country"`
	City      string   `gorm:"size:100" json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type TreatmentStatus struct {
	gorm.Model
	ReferralID uint       `gorm:"not null;uniqueIndex" json:"referral_id"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Notes      string     `json:"notes"`
	Outcome    string     `gorm:"size:50" json:"outcome"` // success, partial, failed
}

// Transition describes the result of a status change.
type Transition struct {
	From              string
	To                string
	CommissionApplied bool
	// CommissionError is the non-fatal reason the commission could not be applied.
	CommissionError error
}

func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func referralPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("Treatment.Group").Preload("Affiliate.User").Preload("TreatmentStatus")
}

// LoadReferral fetches a referral with everything the commission engine reads.
func LoadReferral(db *gorm.DB, id uint) (*Referral, error) {
	var referral Referral
	if err := referralPreloads(db).First(&referral, id).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func FindReferralByEmail(db *gorm.DB, email string) (*Referral, error) {
	var referral Referral
	if err := referralPreloads(db).Where("email = ?", email).Order("id").First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func ListReferrals(db *gorm.DB, affiliateID *uint) ([]Referral, error) {
	var referrals []Referral
	query := referralPreloads(db).Order("created_at DESC")
	if affiliateID != nil {
		query = query.Where("affiliate_id = ?", *affiliateID)
	}
	err := query.Find(&referrals).Error
	return referrals, err
}

// ValidateForCompletion reports why the referral cannot earn a commission.
func (referral *Referral) ValidateForCompletion() error {
	if referral.Treatment == nil {
		return ErrMissingTreatment
	}
	if referral.Treatment.Group == nil {
		return ErrMissingGroup
	}
	if referral.Treatment.Group.CommissionAmount.IsZero() {
		return ErrMissingCommission
	}
	if !referral.Treatment.Group.CommissionAmount.IsPositive() {
		return ErrInvalidCommission
	}
	if referral.Affiliate == nil {
		return ErrMissingAffiliate
	}
	return nil
}

// CalculateAndUpdateCommission sets the referral's commission from its treatment
// group and recomputes the affiliate's earnings inside a nested transaction.
// On failure nothing is mutated and the reason is returned.
func (referral *Referral) CalculateAndUpdateCommission(db *gorm.DB, source string) error {
	log := Logging.Logger.With(zap.Uint("referral_id", referral.ID), zap.String("source", source))

	if err := referral.ValidateForCompletion(); err != nil {
		log.Warn("Commission validation failed", zap.Error(err))
		Monitoring.CommissionCalculations.WithLabelValues(source, "invalid").Inc()
		return err
	}

	if referral.Status != StatusCompleted {
		log.Info("Referral is not completed", zap.String("status", referral.Status))
		Monitoring.CommissionCalculations.WithLabelValues(source, "not_completed").Inc()
		return ErrNotCompleted
	}

	commission := CalculateCommission(referral.Treatment)
	if !commission.IsPositive() {
		Monitoring.CommissionCalculations.WithLabelValues(source, "invalid").Inc()
		return ErrInvalidCommission
	}

	previous := referral.CommissionAmount
	previousEarnings := referral.Affiliate.TotalEarnings

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Referral{}).Where("id = ?", referral.ID).
			UpdateColumn("commission_amount", commission).Error; err != nil {
			return err
		}
		referral.CommissionAmount = commission

		entry := CommissionEntry{
			ReferralID:  referral.ID,
			AffiliateID: referral.AffiliateID,
			Amount:      commission,
			Source:      source,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return referral.Affiliate.UpdateEarnings(tx)
	})
	if err != nil {
		referral.CommissionAmount = previous
		referral.Affiliate.TotalEarnings = previousEarnings
		log.Error("Database error updating commission", zap.Error(err))
		Monitoring.CommissionCalculations.WithLabelValues(source, "error").Inc()
		return ErrCommissionDatabase
	}

	log.Info("Updated commission and earnings",
		zap.Uint("affiliate_id", referral.AffiliateID),
		zap.String("commission_amount", commission.StringFixed(2)))
	Monitoring.CommissionCalculations.WithLabelValues(source, "applied").Inc()
	return nil
}

// TransitionReferral sets the referral status, maintains its treatment status
// record and, when the referral has just become completed, applies the commission.
// A commission failure does not undo the status change; it is reported on the
// returned Transition. notes is left untouched when nil.
func TransitionReferral(db *gorm.DB, referral *Referral, status string, notes *string, source string) (Transition, error) {
	transition := Transition{From: referral.Status, To: status}
	if !IsValidStatus(status) {
		return transition, ErrInvalidStatus
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := upsertTreatmentStatus(tx, referral, status, notes); err != nil {
			return err
		}

		if err := tx.Model(&Referral{}).Where("id = ?", referral.ID).Update("status", status).Error; err != nil {
			return err
		}
		referral.Status = status

		if status == StatusCompleted && transition.From != StatusCompleted {
			if err := referral.CalculateAndUpdateCommission(tx, source); err != nil {
				Logging.Logger.Warn("Status updated but commission calculation failed",
					zap.Uint("referral_id", referral.ID), zap.Error(err))
				transition.CommissionError = err
				return nil
			}
			transition.CommissionApplied = true
		}
		return nil
	})
	if err != nil {
		referral.Status = transition.From
		return transition, err
	}
	return transition, nil
}

func upsertTreatmentStatus(tx *gorm.DB, referral *Referral, status string, notes *string) error {
	now := time.Now().UTC()
	ts := referral.TreatmentStatus
	if ts == nil {
		ts = &TreatmentStatus{ReferralID: referral.ID}
	}
	if notes != nil {
		ts.Notes = *notes
	}
	if status == StatusInProgress && ts.StartDate == nil {
		ts.StartDate = &now
	}
	if status == StatusCompleted && ts.EndDate == nil {
		ts.EndDate = &now
	}
	if err := tx.Save(ts).Error; err != nil {
		return err
	}
	referral.TreatmentStatus = ts
	return nil
}

// MarkTreatmentOutcome records the outcome of the referral's treatment.
func MarkTreatmentOutcome(db *gorm.DB, referral *Referral, outcome, notes string) error {
	ts := referral.TreatmentStatus
	if ts == nil {
		ts = &TreatmentStatus{ReferralID: referral.ID, Notes: notes}
	}
	if ts.EndDate == nil {
		now := time.Now().UTC()
		ts.EndDate = &now
	}
	ts.Outcome = outcome
	if err := db.Save(ts).Error; err != nil {
		return err
	}
	referral.TreatmentStatus = ts
	return nil
}

// CreateReferral validates the treatment and stores a new referral.
func CreateReferral(db *gorm.DB, referral *Referral) error {
	if referral.Name == "" || referral.Surname == "" || referral.Email == "" || referral.Phone == "" || referral.TreatmentID == 0 {
		return ErrMissingReferralField
	}

	var treatment Treatment
	if err := db.Preload("Group").First(&treatment, referral.TreatmentID).Error; err != nil || !treatment.Active {
		return ErrInactiveTreatment
	}

	referral.Status = StatusNew
	referral.CommissionAmount = decimal.Zero
	if err := db.Omit(clause.Associations).Create(referral).Error; err != nil {
		return err
	}
	referral.Treatment = &treatment
	return nil
}

// AssignTreatment points the referral at another treatment and keeps the loaded
// association in step so the commission engine reads the new group.
func AssignTreatment(db *gorm.DB, referral *Referral, treatment *Treatment) error {
	if err := db.Model(&Referral{}).Where("id = ?", referral.ID).Update("treatment_id", treatment.ID).Error; err != nil {
		return err
	}
	referral.TreatmentID = treatment.ID
	referral.Treatment = treatment
	return nil
}
