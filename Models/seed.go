package Models

import (
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedGroup struct {
	Name        string
	Description string
	Amount      int64
	Treatments  []string
	Duration    int
}

var catalogue = []seedGroup{
	{"Hair Transplant", "Advanced hair restoration treatments", 500,
		[]string{"FUE Hair Transplant", "DHI Hair Transplant", "Sapphire FUE Treatment", "Beard Transplant"}, 180},
	{"Dental Treatments", "Comprehensive dental procedures", 300,
		[]string{"All-on-4 Dental Implants", "Dental Veneers", "Full Mouth Rehabilitation", "Dental Crowns"}, 60},
	{"Plastic Surgery", "Cosmetic and reconstructive procedures", 1000,
		[]string{"Rhinoplasty", "Breast Augmentation", "Liposuction", "Face Lift"}, 90},
	{"Eye Surgery", "Advanced ophthalmological procedures", 400,
		[]string{"LASIK Surgery", "Cataract Surgery", "PRK Treatment", "ICL Surgery"}, 30},
}

// SeedCatalogue creates the sample treatment groups and treatments. Groups that
// already exist by name are left alone. It returns the number of groups created.
func SeedCatalogue(db *gorm.DB) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range catalogue {
			var count int64
			if err := tx.Model(&TreatmentGroup{}).Where("LOWER(name) = LOWER(?)", entry.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			group := TreatmentGroup{
				Name:             entry.Name,
				Description:      entry.Description,
				CommissionAmount: decimal.NewFromInt(entry.Amount),
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
			for _, name := range entry.Treatments {
				duration := entry.Duration
				treatment := Treatment{Name: name, Active: true, GroupID: &group.ID, AverageDuration: &duration}
				if err := tx.Create(&treatment).Error; err != nil {
					return err
				}
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	Logging.Logger.Info("Seeded treatment catalogue", zap.Int("groups_created", created))
	return created, nil
}
