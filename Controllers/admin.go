package Controllers

import (
	"net/http"
	"strconv"

	"github.com/mertgercek/AffiliateSystemForClinichub/Analytics"
	"github.com/mertgercek/AffiliateSystemForClinichub/Email"
	"github.com/mertgercek/AffiliateSystemForClinichub/Importer"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentReferralLimit = 20

func AdminDashboard(c *gin.Context) {
	metrics, err := Analytics.GetConversionMetrics(Models.DB, Analytics.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	topAffiliates, err := Analytics.TopAffiliates(Models.DB, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	pending, err := Models.PendingAffiliates(Models.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	treatments, err := Models.GetActiveTreatments(Models.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var referrals []Models.Referral
	if err := Models.DB.Preload("Treatment.Group").Preload("Affiliate.User").Preload("TreatmentStatus").
		Order("created_at DESC").Limit(recentReferralLimit).Find(&referrals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analytics":          metrics,
		"top_affiliates":     topAffiliates,
		"pending_affiliates": pending,
		"referrals":          referrals,
		"treatments":         treatments,
	})
}

// AdminAnalytics returns conversion metrics for an optional start_date/end_date
// window and affiliate_id.
func AdminAnalytics(c *gin.Context) {
	start, end, err := parseDateRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := Analytics.Filter{Start: start, End: end}
	if value := c.Query("affiliate_id"); value != "" {
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid affiliate_id"})
			return
		}
		affiliateID := uint(id)
		filter.AffiliateID = &affiliateID
	}

	metrics, err := Analytics.GetConversionMetrics(Models.DB, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func FetchReferrals(c *gin.Context) {
	referrals, err := Models.ListReferrals(Models.DB, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, referrals)
}

func GetReferral(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	referral, err := Models.LoadReferral(Models.DB, id)
	if err != nil {
		notFoundOr(c, err, "Referral")
		return
	}
	c.JSON(http.StatusOK, referral)
}

type StatusInput struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// UpdateReferralStatus moves a referral to a new status. A commission failure
// is reported as a warning; the status change itself is kept.
func UpdateReferralStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input StatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !Models.IsValidStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrInvalidStatus.Error(), "valid_statuses": Models.ValidStatuses})
		return
	}

	referral, err := Models.LoadReferral(Models.DB, id)
	if err != nil {
		notFoundOr(c, err, "Referral")
		return
	}

	transition, err := Models.TransitionReferral(Models.DB, referral, input.Status, input.Notes, Models.SourceStatusUpdate)
	if err != nil {
		Logging.Logger.Error("Error updating treatment status", zap.Uint("referral_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating treatment status."})
		return
	}

	triggerStatusEvents(referral, transition)
	c.JSON(http.StatusOK, transitionResponse(referral, transition))
}

// ApproveAffiliate approves the affiliate and verifies its email. A failed
// notification email is only a warning.
func ApproveAffiliate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	affiliate, err := Models.ApproveAffiliate(Models.DB, id)
	if err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}

	if affiliate.User != nil {
		if err := Email.SendApprovalNotification(affiliate.User.Email); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"message": "Affiliate approved",
				"warning": "Affiliate approved but notification email could not be sent.",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Affiliate approved and email verified successfully"})
}

func RejectAffiliate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := Models.RejectAffiliate(Models.DB, id); err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Affiliate rejected"})
}

func AffiliateDetails(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var affiliate Models.Affiliate
	if err := Models.DB.Preload("User").First(&affiliate, id).Error; err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}
	details, err := Analytics.GetAffiliateDetails(Models.DB, affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	referrals, err := Models.ListReferrals(Models.DB, &affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ledger, err := Models.ListCommissionEntries(Models.DB, affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"affiliate":   affiliate,
		"referrals":   referrals,
		"analytics":   details,
		"commissions": ledger,
	})
}

// RecomputeEarnings rebuilds the affiliate's total from its completed referrals.
func RecomputeEarnings(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var affiliate Models.Affiliate
	if err := Models.DB.First(&affiliate, id).Error; err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}
	before := affiliate.TotalEarnings
	if err := affiliate.UpdateEarnings(Models.DB); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error occurred"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Earnings recalculated",
		"previous_total":  before,
		"total_earnings":  affiliate.TotalEarnings,
		"drift_corrected": !before.Equal(affiliate.TotalEarnings),
	})
}

// ImportData loads groups, treatments or mappings from an uploaded CSV/XLSX file.
func ImportData(c *gin.Context) {
	kind := c.Param("kind")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	result, err := Importer.ImportFile(Models.DB, kind, fileHeader.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	Logging.Logger.Info("Import finished",
		zap.String("kind", kind),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))
	c.JSON(http.StatusOK, result)
}
