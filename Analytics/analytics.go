// Package Analytics computes dashboard statistics from referrals. Nothing here writes.
package Analytics

import (
	"math"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultWindow = 30 * 24 * time.Hour

// Filter bounds an aggregation. Zero values mean: every affiliate, the 30 days
// ending now.
type Filter struct {
	AffiliateID *uint
	Start       time.Time
	End         time.Time
}

type TreatmentCommission struct {
	Total     decimal.Decimal `json:"total"`
	FixedRate decimal.Decimal `json:"fixed_rate"`
}

type ConversionMetrics struct {
	Start                    time.Time                      `json:"start"`
	End                      time.Time                      `json:"end"`
	TotalReferrals           int                            `json:"total_referrals"`
	TotalCommissions         decimal.Decimal                `json:"total_commissions"`
	AvgCommission            decimal.Decimal                `json:"avg_commission"`
	StatusCounts             map[string]int                 `json:"status_counts"`
	ConversionRate           float64                        `json:"conversion_rate"`
	TreatmentDistribution    map[string]int                 `json:"treatment_distribution"`
	TreatmentSuccessRate     map[string]float64             `json:"treatment_success_rate"`
	TreatmentCommission      map[string]TreatmentCommission `json:"treatment_commission"`
	CommissionDistribution   map[string]decimal.Decimal     `json:"commission_distribution"`
	AvgTreatmentDurationDays map[string]float64             `json:"avg_treatment_duration_days"`
	MonthlyGrowthRate        float64                        `json:"monthly_growth_rate"`
}

func (f Filter) window(now time.Time) (time.Time, time.Time) {
	end := f.End
	if end.IsZero() {
		end = now
	}
	start := f.Start
	if start.IsZero() {
		start = end.Add(-DefaultWindow)
	}
	return start, end
}

func (f Filter) scope(db *gorm.DB) *gorm.DB {
	if f.AffiliateID != nil {
		return db.Where("referrals.affiliate_id = ?", *f.AffiliateID)
	}
	return db
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func growth(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return round2(float64(current-previous) / float64(previous) * 100)
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

type statusRow struct {
	Status     string
	Referrals  int
	Commission decimal.Decimal
}

type treatmentRow struct {
	Name       string
	Referrals  int
	Successes  int
	Commission decimal.Decimal
	FixedRate  decimal.Decimal
}

type groupRow struct {
	Name       string
	Commission decimal.Decimal
}

type durationRow struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// GetConversionMetrics aggregates the referrals created inside the filter window.
func GetConversionMetrics(db *gorm.DB, filter Filter) (*ConversionMetrics, error) {
	start, end := filter.window(time.Now())
	inWindow := func() *gorm.DB {
		return filter.scope(db.Model(&Models.Referral{})).
			Where("referrals.created_at BETWEEN ? AND ?", start, end)
	}

	metrics := &ConversionMetrics{
		Start:                    start,
		End:                      end,
		TotalCommissions:         decimal.Zero,
		StatusCounts:             map[string]int{},
		TreatmentDistribution:    map[string]int{},
		TreatmentSuccessRate:     map[string]float64{},
		TreatmentCommission:      map[string]TreatmentCommission{},
		CommissionDistribution:   map[string]decimal.Decimal{},
		AvgTreatmentDurationDays: map[string]float64{},
	}

	var statuses []statusRow
	err := inWindow().
		Select("referrals.status AS status, COUNT(*) AS referrals, COALESCE(SUM(referrals.commission_amount), 0) AS commission").
		Group("referrals.status").
		Scan(&statuses).Error
	if err != nil {
		return nil, err
	}
	for _, row := range statuses {
		metrics.StatusCounts[row.Status] = row.Referrals
		metrics.TotalReferrals += row.Referrals
		if row.Status == Models.StatusCompleted {
			metrics.TotalCommissions = row.Commission
		}
	}

	var treatments []treatmentRow
	err = inWindow().
		Select(`treatments.name AS name, COUNT(referrals.id) AS referrals,
			COALESCE(SUM(CASE WHEN treatment_statuses.outcome = 'success' THEN 1 ELSE 0 END), 0) AS successes,
			COALESCE(SUM(referrals.commission_amount), 0) AS commission,
			COALESCE(MAX(treatment_groups.commission_amount), 0) AS fixed_rate`).
		Joins("JOIN treatments ON treatments.id = referrals.treatment_id").
		Joins("LEFT JOIN treatment_groups ON treatment_groups.id = treatments.group_id").
		Joins("LEFT JOIN treatment_statuses ON treatment_statuses.referral_id = referrals.id AND treatment_statuses.deleted_at IS NULL").
		Group("treatments.name").
		Scan(&treatments).Error
	if err != nil {
		return nil, err
	}
	for _, row := range treatments {
		metrics.TreatmentDistribution[row.Name] = row.Referrals
		metrics.TreatmentSuccessRate[row.Name] = percent(row.Successes, row.Referrals)
		metrics.TreatmentCommission[row.Name] = TreatmentCommission{Total: row.Commission, FixedRate: row.FixedRate}
	}

	var groups []groupRow
	err = inWindow().
		Select("treatment_groups.name AS name, COALESCE(SUM(referrals.commission_amount), 0) AS commission").
		Joins("JOIN treatments ON treatments.id = referrals.treatment_id").
		Joins("JOIN treatment_groups ON treatment_groups.id = treatments.group_id").
		Where("referrals.status = ?", Models.StatusCompleted).
		Group("treatment_groups.name").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	for _, row := range groups {
		metrics.CommissionDistribution[row.Name] = row.Commission
	}

	// Date arithmetic differs between postgres and sqlite, so durations are averaged here.
	var durations []durationRow
	err = inWindow().
		Select("treatments.name AS name, treatment_statuses.start_date AS start_date, treatment_statuses.end_date AS end_date").
		Joins("JOIN treatments ON treatments.id = referrals.treatment_id").
		Joins("JOIN treatment_statuses ON treatment_statuses.referral_id = referrals.id AND treatment_statuses.deleted_at IS NULL").
		Where("treatment_statuses.start_date IS NOT NULL AND treatment_statuses.end_date IS NOT NULL").
		Scan(&durations).Error
	if err != nil {
		return nil, err
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range durations {
		sums[row.Name] += row.EndDate.Sub(row.StartDate).Hours() / 24
		counts[row.Name]++
	}
	for name, sum := range sums {
		metrics.AvgTreatmentDurationDays[name] = round2(sum / float64(counts[name]))
	}

	completed := metrics.StatusCounts[Models.StatusCompleted]
	metrics.ConversionRate = percent(completed, metrics.TotalReferrals)
	metrics.AvgCommission = average(metrics.TotalCommissions, completed)

	var previous int64
	err = filter.scope(db.Model(&Models.Referral{})).
		Where("referrals.created_at >= ? AND referrals.created_at < ?", start.Add(-DefaultWindow), start).
		Count(&previous).Error
	if err != nil {
		return nil, err
	}
	metrics.MonthlyGrowthRate = growth(metrics.TotalReferrals, int(previous))

	return metrics, nil
}

type AffiliateRanking struct {
	AffiliateID        uint            `json:"affiliate_id"`
	Username           string          `json:"username"`
	Slug               string          `json:"slug"`
	TotalReferrals     int             `json:"total_referrals"`
	CompletedReferrals int             `json:"completed_referrals"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
}

// TopAffiliates ranks affiliates by the commission earned on completed referrals.
func TopAffiliates(db *gorm.DB, limit int) ([]AffiliateRanking, error) {
	if limit <= 0 {
		limit = 5
	}
	var rankings []AffiliateRanking
	err := db.Table("affiliates").
		Select(`affiliates.id AS affiliate_id, users.username AS username, affiliates.slug AS slug,
			COUNT(referrals.id) AS total_referrals,
			COALESCE(SUM(CASE WHEN referrals.status = ? THEN 1 ELSE 0 END), 0) AS completed_referrals,
			COALESCE(SUM(CASE WHEN referrals.status = ? THEN referrals.commission_amount ELSE 0 END), 0) AS total_commission`,
			Models.StatusCompleted, Models.StatusCompleted).
		Joins("JOIN users ON users.id = affiliates.user_id").
		Joins("LEFT JOIN referrals ON referrals.affiliate_id = affiliates.id AND referrals.deleted_at IS NULL").
		Where("affiliates.deleted_at IS NULL").
		Group("affiliates.id, users.username, affiliates.slug").
		Order("total_commission DESC, total_referrals DESC, affiliates.id").
		Limit(limit).
		Scan(&rankings).Error
	return rankings, err
}

type AffiliateDetails struct {
	TotalReferrals         int                        `json:"total_referrals"`
	CompletedReferrals     int                        `json:"completed_referrals"`
	ConversionRate         float64                    `json:"conversion_rate"`
	AvgCommission          decimal.Decimal            `json:"avg_commission"`
	StatusCounts           map[string]int             `json:"status_counts"`
	CommissionDistribution map[string]decimal.Decimal `json:"commission_distribution"`
}

// GetAffiliateDetails summarises every referral of one affiliate. Commission is
// bucketed by the month the referral was created (YYYY-MM).
func GetAffiliateDetails(db *gorm.DB, affiliateID uint) (*AffiliateDetails, error) {
	referrals, err := Models.ListReferrals(db, &affiliateID)
	if err != nil {
		return nil, err
	}

	details := &AffiliateDetails{
		TotalReferrals:         len(referrals),
		StatusCounts:           map[string]int{},
		CommissionDistribution: map[string]decimal.Decimal{},
	}
	total := decimal.Zero
	for _, referral := range referrals {
		details.StatusCounts[referral.Status]++
		if referral.Status != Models.StatusCompleted {
			continue
		}
		details.CompletedReferrals++
		total = total.Add(referral.CommissionAmount)
		month := referral.CreatedAt.Format("2006-01")
		details.CommissionDistribution[month] = details.CommissionDistribution[month].Add(referral.CommissionAmount)
	}
	details.ConversionRate = percent(details.CompletedReferrals, details.TotalReferrals)
	details.AvgCommission = average(total, details.CompletedReferrals)
	return details, nil
}

type DashboardStats struct {
	CompletedReferrals int                        `json:"completed_referrals"`
	PendingReferrals   int                        `json:"pending_referrals"`
	EarningsByDay      map[string]decimal.Decimal `json:"earnings_data"`
	ThisMonthReferrals int                        `json:"this_month_referrals"`
	MonthlyGrowth      float64                    `json:"monthly_growth"`
	SuccessRate        float64                    `json:"success_rate"`
	AvgCommission      decimal.Decimal            `json:"avg_commission"`
}

// GetAffiliateDashboard derives the affiliate dashboard figures from the
// affiliate's referrals. Months are calendar months of now.
func GetAffiliateDashboard(referrals []Models.Referral, now time.Time) DashboardStats {
	stats := DashboardStats{EarningsByDay: map[string]decimal.Decimal{}}

	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonth := thisMonth.AddDate(0, -1, 0)
	nextMonth := thisMonth.AddDate(0, 1, 0)

	total := decimal.Zero
	lastMonthCount := 0
	for _, referral := range referrals {
		created := referral.CreatedAt.In(now.Location())
		switch {
		case !created.Before(thisMonth) && created.Before(nextMonth):
			stats.ThisMonthReferrals++
		case !created.Before(lastMonth) && created.Before(thisMonth):
			lastMonthCount++
		}

		if referral.Status != Models.StatusCompleted {
			stats.PendingReferrals++
			continue
		}
		stats.CompletedReferrals++
		total = total.Add(referral.CommissionAmount)
		day := created.Format("2006-01-02")
		stats.EarningsByDay[day] = stats.EarningsByDay[day].Add(referral.CommissionAmount)
	}

	stats.MonthlyGrowth = growth(stats.ThisMonthReferrals, lastMonthCount)
	stats.SuccessRate = percent(stats.CompletedReferrals, len(referrals))
	stats.AvgCommission = average(total, stats.CompletedReferrals)
	return stats
}
