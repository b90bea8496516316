// Package TestUtil opens throwaway databases and seeds fixtures for package tests.
package TestUtil

import (
	"fmt"
	"testing"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database, migrates it and installs
// it as Models.DB for the duration of the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// A single connection keeps the shared in-memory database alive and
	// serialises writers.
	sqlDB.SetMaxOpenConns(1)

	if err := Models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	previous := Models.DB
	Models.DB = db
	t.Cleanup(func() {
		Models.DB = previous
		sqlDB.Close()
	})
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, username, role string) *Models.User {
	t.Helper()
	user := &Models.User{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "secret123",
		Role:            role,
		EmailVerified:   true,
		EmailSubscribed: true,
	}
	if _, err := user.SaveUser(db); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateAffiliate creates an approved affiliate together with its user.
func CreateAffiliate(t *testing.T, db *gorm.DB, username string) *Models.Affiliate {
	t.Helper()
	user := CreateUser(t, db, username, Models.RoleAffiliate)
	affiliate, err := Models.EnsureAffiliate(db, user.ID)
	if err != nil {
		t.Fatalf("create affiliate: %v", err)
	}
	if err := db.Model(affiliate).Update("approved", true).Error; err != nil {
		t.Fatalf("approve affiliate: %v", err)
	}
	affiliate.User = user
	return affiliate
}

func CreateGroup(t *testing.T, db *gorm.DB, name string, amount string) *Models.TreatmentGroup {
	t.Helper()
	group := &Models.TreatmentGroup{Name: name, CommissionAmount: decimal.RequireFromString(amount)}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	return group
}

// CreateTreatment creates an active treatment, optionally inside a group.
func CreateTreatment(t *testing.T, db *gorm.DB, name string, group *Models.TreatmentGroup) *Models.Treatment {
	t.Helper()
	treatment := &Models.Treatment{Name: name, Active: true}
	if group != nil {
		treatment.GroupID = &group.ID
	}
	if err := db.Omit("Group").Create(treatment).Error; err != nil {
		t.Fatalf("create treatment: %v", err)
	}
	treatment.Group = group
	return treatment
}

// CreateReferral stores a new referral and reloads it with its associations.
func CreateReferral(t *testing.T, db *gorm.DB, affiliate *Models.Affiliate, treatment *Models.Treatment, email string) *Models.Referral {
	t.Helper()
	referral := &Models.Referral{
		AffiliateID: affiliate.ID,
		TreatmentID: treatment.ID,
		Name:        "Jane",
		Surname:     "Doe",
		Email:       email,
		Phone:       "+905551112233",
	}
	if err := Models.CreateReferral(db, referral); err != nil {
		t.Fatalf("create referral: %v", err)
	}
	loaded, err := Models.LoadReferral(db, referral.ID)
	if err != nil {
		t.Fatalf("load referral: %v", err)
	}
	return loaded
}
