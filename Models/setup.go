package Models

import (
	"errors"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func init() {
	// Money is rendered as JSON numbers, matching what dashboard clients expect.
	decimal.MarshalJSONWithoutQuotes = true
}

func ConnectDataBase(cfg *Config.Config) error {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return errors.New("unsupported DB_DRIVER " + cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		Logging.Logger.Error("Cannot connect to database", zap.Error(err))
		return err
	}
	Logging.Logger.Info("Connected to the database", zap.String("driver", cfg.DBDriver))

	DB = db
	return Migrate(DB)
}

func Migrate(db *gorm.DB) error {
	// First migrate models with no dependencies
	if err := db.AutoMigrate(&User{}, &TreatmentGroup{}); err != nil {
		return err
	}

	// Then migrate models that depend on the above
	if err := db.AutoMigrate(&APIKey{}, &DeviceToken{}, &Affiliate{}, &Treatment{}, &TreatmentNameMapping{}, &Webhook{}, &Notification{}); err != nil {
		return err
	}

	// Finally migrate models that depend on multiple other models
	return db.AutoMigrate(&Referral{}, &TreatmentStatus{}, &CommissionEntry{}, &Ticket{}, &TicketResponse{})
}

// SeedAdmin creates the admin account if no user owns the email yet.
func SeedAdmin(db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	admin := User{
		Username:        "admin",
		Email:           email,
		Password:        password,
		Role:            RoleAdmin,
		EmailVerified:   true,
		EmailSubscribed: true,
	}
	if _, err := admin.SaveUser(db); err != nil {
		return err
	}
	Logging.Logger.Info("Admin user created", zap.String("email", email))
	return nil
}
