package Analytics

import (
	"testing"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func complete(t *testing.T, db *gorm.DB, referral *Models.Referral) {
	t.Helper()
	if _, err := Models.TransitionReferral(db, referral, Models.StatusCompleted, nil, Models.SourceStatusUpdate); err != nil {
		t.Fatalf("complete referral: %v", err)
	}
}

func backdate(t *testing.T, db *gorm.DB, referral *Models.Referral, at time.Time) {
	t.Helper()
	if err := db.Model(&Models.Referral{}).Where("id = ?", referral.ID).UpdateColumn("created_at", at).Error; err != nil {
		t.Fatal(err)
	}
}

func TestGetConversionMetrics(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	alice := TestUtil.CreateAffiliate(t, db, "alice")
	bob := TestUtil.CreateAffiliate(t, db, "bob")
	dental := TestUtil.CreateGroup(t, db, "Dental", "100")
	hair := TestUtil.CreateGroup(t, db, "Hair", "40")
	implant := TestUtil.CreateTreatment(t, db, "Implant", dental)
	fue := TestUtil.CreateTreatment(t, db, "FUE", hair)

	r1 := TestUtil.CreateReferral(t, db, alice, implant, "1@example.com")
	r2 := TestUtil.CreateReferral(t, db, alice, fue, "2@example.com")
	TestUtil.CreateReferral(t, db, alice, fue, "3@example.com")
	r4 := TestUtil.CreateReferral(t, db, bob, implant, "4@example.com")

	complete(t, db, r1)
	complete(t, db, r2)
	complete(t, db, r4)
	if err := Models.MarkTreatmentOutcome(db, r1, "success", ""); err != nil {
		t.Fatal(err)
	}

	metrics, err := GetConversionMetrics(db, Filter{})
	if err != nil {
		t.Fatalf("GetConversionMetrics: %v", err)
	}
	if metrics.TotalReferrals != 4 {
		t.Errorf("total referrals = %d, want 4", metrics.TotalReferrals)
	}
	if !metrics.TotalCommissions.Equal(decimal.NewFromInt(240)) {
		t.Errorf("total commissions = %s, want 240", metrics.TotalCommissions)
	}
	if metrics.StatusCounts[Models.StatusCompleted] != 3 || metrics.StatusCounts[Models.StatusNew] != 1 {
		t.Errorf("status counts = %v", metrics.StatusCounts)
	}
	if metrics.ConversionRate != 75 {
		t.Errorf("conversion rate = %v, want 75", metrics.ConversionRate)
	}
	if !metrics.AvgCommission.Equal(decimal.NewFromInt(80)) {
		t.Errorf("avg commission = %s, want 80", metrics.AvgCommission)
	}
	if metrics.TreatmentDistribution["FUE"] != 2 || metrics.TreatmentDistribution["Implant"] != 2 {
		t.Errorf("treatment distribution = %v", metrics.TreatmentDistribution)
	}
	if metrics.TreatmentSuccessRate["Implant"] != 50 {
		t.Errorf("implant success rate = %v, want 50", metrics.TreatmentSuccessRate["Implant"])
	}
	if !metrics.CommissionDistribution["Dental"].Equal(decimal.NewFromInt(200)) {
		t.Errorf("dental commission = %s", metrics.CommissionDistribution["Dental"])
	}
	if !metrics.TreatmentCommission["FUE"].FixedRate.Equal(decimal.NewFromInt(40)) {
		t.Errorf("FUE fixed rate = %s", metrics.TreatmentCommission["FUE"].FixedRate)
	}

	scoped, err := GetConversionMetrics(db, Filter{AffiliateID: &bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if scoped.TotalReferrals != 1 || !scoped.TotalCommissions.Equal(decimal.NewFromInt(100)) {
		t.Errorf("scoped metrics = %d referrals, %s commissions", scoped.TotalReferrals, scoped.TotalCommissions)
	}
}

func TestGetConversionMetricsGrowth(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")
	treatment := TestUtil.CreateTreatment(t, db, "Scan", TestUtil.CreateGroup(t, db, "Radiology", "10"))

	old := TestUtil.CreateReferral(t, db, affiliate, treatment, "old@example.com")
	backdate(t, db, old, time.Now().Add(-40*24*time.Hour))
	TestUtil.CreateReferral(t, db, affiliate, treatment, "a@example.com")
	TestUtil.CreateReferral(t, db, affiliate, treatment, "b@example.com")

	metrics, err := GetConversionMetrics(db, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if metrics.TotalReferrals != 2 {
		t.Errorf("total referrals = %d, want 2", metrics.TotalReferrals)
	}
	if metrics.MonthlyGrowthRate != 100 {
		t.Errorf("growth = %v, want 100", metrics.MonthlyGrowthRate)
	}
}

func TestGetConversionMetricsDurationsAndDeletes(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")
	treatment := TestUtil.CreateTreatment(t, db, "Implant", TestUtil.CreateGroup(t, db, "Dental", "100"))

	kept := TestUtil.CreateReferral(t, db, affiliate, treatment, "kept@example.com")
	complete(t, db, kept)
	start := time.Now().Add(-72 * time.Hour).UTC()
	end := start.Add(48 * time.Hour)
	if err := db.Model(kept.TreatmentStatus).Updates(map[string]interface{}{"start_date": start, "end_date": end}).Error; err != nil {
		t.Fatal(err)
	}

	deleted := TestUtil.CreateReferral(t, db, affiliate, treatment, "gone@example.com")
	complete(t, db, deleted)
	if err := db.Delete(&Models.Referral{}, deleted.ID).Error; err != nil {
		t.Fatal(err)
	}

	metrics, err := GetConversionMetrics(db, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if metrics.TotalReferrals != 1 || metrics.TreatmentDistribution["Implant"] != 1 {
		t.Errorf("deleted referral counted: %d / %v", metrics.TotalReferrals, metrics.TreatmentDistribution)
	}
	if !metrics.TotalCommissions.Equal(decimal.NewFromInt(100)) {
		t.Errorf("total commissions = %s, want 100", metrics.TotalCommissions)
	}
	if got := metrics.AvgTreatmentDurationDays["Implant"]; got != 2 {
		t.Errorf("avg duration = %v, want 2", got)
	}
}

func TestTopAffiliates(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	alice := TestUtil.CreateAffiliate(t, db, "alice")
	bob := TestUtil.CreateAffiliate(t, db, "bob")
	TestUtil.CreateAffiliate(t, db, "carol")
	cheap := TestUtil.CreateTreatment(t, db, "Cleaning", TestUtil.CreateGroup(t, db, "Basic", "10"))
	pricey := TestUtil.CreateTreatment(t, db, "Implant", TestUtil.CreateGroup(t, db, "Premium", "500"))

	complete(t, db, TestUtil.CreateReferral(t, db, alice, cheap, "a1@example.com"))
	complete(t, db, TestUtil.CreateReferral(t, db, alice, cheap, "a2@example.com"))
	complete(t, db, TestUtil.CreateReferral(t, db, bob, pricey, "b1@example.com"))

	top, err := TopAffiliates(db, 2)
	if err != nil {
		t.Fatalf("TopAffiliates: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d rankings, want 2", len(top))
	}
	if top[0].AffiliateID != bob.ID || top[1].AffiliateID != alice.ID {
		t.Errorf("order = %d,%d want %d,%d", top[0].AffiliateID, top[1].AffiliateID, bob.ID, alice.ID)
	}
	if top[1].TotalReferrals != 2 || top[1].CompletedReferrals != 2 || top[1].Username != "alice" {
		t.Errorf("alice ranking = %+v", top[1])
	}
}

func TestGetAffiliateDetails(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")
	treatment := TestUtil.CreateTreatment(t, db, "Implant", TestUtil.CreateGroup(t, db, "Dental", "60"))

	complete(t, db, TestUtil.CreateReferral(t, db, affiliate, treatment, "1@example.com"))
	TestUtil.CreateReferral(t, db, affiliate, treatment, "2@example.com")

	details, err := GetAffiliateDetails(db, affiliate.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.TotalReferrals != 2 || details.CompletedReferrals != 1 {
		t.Errorf("details = %+v", details)
	}
	if details.ConversionRate != 50 || !details.AvgCommission.Equal(decimal.NewFromInt(60)) {
		t.Errorf("rate=%v avg=%s", details.ConversionRate, details.AvgCommission)
	}
	month := time.Now().Format("2006-01")
	if !details.CommissionDistribution[month].Equal(decimal.NewFromInt(60)) {
		t.Errorf("distribution = %v", details.CommissionDistribution)
	}
}

func TestGetAffiliateDashboard(t *testing.T) {
	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	referral := func(created time.Time, status string, amount int64) Models.Referral {
		r := Models.Referral{Status: status, CommissionAmount: decimal.NewFromInt(amount)}
		r.CreatedAt = created
		return r
	}
	referrals := []Models.Referral{
		referral(time.Date(2024, time.January, 3, 9, 0, 0, 0, time.UTC), Models.StatusCompleted, 100),
		referral(time.Date(2024, time.January, 3, 18, 0, 0, 0, time.UTC), Models.StatusCompleted, 50),
		referral(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), Models.StatusNew, 0),
		referral(time.Date(2023, time.December, 20, 0, 0, 0, 0, time.UTC), Models.StatusInProgress, 0),
		referral(time.Date(2023, time.November, 20, 0, 0, 0, 0, time.UTC), Models.StatusNew, 0),
	}

	stats := GetAffiliateDashboard(referrals, now)
	if stats.CompletedReferrals != 2 || stats.PendingReferrals != 3 {
		t.Errorf("completed=%d pending=%d", stats.CompletedReferrals, stats.PendingReferrals)
	}
	if stats.ThisMonthReferrals != 3 {
		t.Errorf("this month = %d, want 3", stats.ThisMonthReferrals)
	}
	// December is the previous month of January.
	if stats.MonthlyGrowth != 200 {
		t.Errorf("growth = %v, want 200", stats.MonthlyGrowth)
	}
	if stats.SuccessRate != 40 {
		t.Errorf("success rate = %v, want 40", stats.SuccessRate)
	}
	if !stats.AvgCommission.Equal(decimal.NewFromInt(75)) {
		t.Errorf("avg commission = %s, want 75", stats.AvgCommission)
	}
	if !stats.EarningsByDay["2024-01-03"].Equal(decimal.NewFromInt(150)) {
		t.Errorf("earnings by day = %v", stats.EarningsByDay)
	}
}
