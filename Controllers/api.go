package Controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mertgercek/AffiliateSystemForClinichub/GeoIP"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"
	"github.com/mertgercek/AffiliateSystemForClinichub/Webhooks"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers under /api/v1. APIKeyAuth has stored the key's user, with its
// affiliate preloaded; RequireAffiliate guards the affiliate-only routes.

func APIProfile(c *gin.Context) {
	user := Middleware.CurrentUser(c)
	profile := gin.H{
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}
	if user.Affiliate != nil {
		profile["affiliate"] = gin.H{
			"id":             user.Affiliate.ID,
			"slug":           user.Affiliate.Slug,
			"approved":       user.Affiliate.Approved,
			"total_earnings": user.Affiliate.TotalEarnings,
		}
	}
	c.JSON(http.StatusOK, profile)
}

func APIListReferrals(c *gin.Context) {
	affiliate := Middleware.CurrentUser(c).Affiliate
	referrals, err := Models.ListReferrals(Models.DB, &affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, referrals)
}

type APIReferralInput struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	TreatmentID uint   `json:"treatment_id"`
}

func APICreateReferral(c *gin.Context) {
	var input APIReferralInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": Models.ErrMissingReferralField.Error(), "details": err.Error()})
		return
	}

	user := Middleware.CurrentUser(c)
	affiliate := user.Affiliate
	referral := Models.Referral{
		AffiliateID: affiliate.ID,
		TreatmentID: input.TreatmentID,
		Name:        strings.TrimSpace(input.Name),
		Surname:     strings.TrimSpace(input.Surname),
		Email:       Utils.NormalizeEmail(input.Email),
		Phone:       Utils.FormatPhoneNumber(input.Phone),
	}
	if err := Models.CreateReferral(Models.DB, &referral); err != nil {
		if errors.Is(err, Models.ErrInactiveTreatment) || errors.Is(err, Models.ErrMissingReferralField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		Logging.Logger.Error("Error creating referral", zap.Uint("affiliate_id", affiliate.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create referral"})
		return
	}

	announceReferral(Models.DB, affiliate, &referral)
	c.JSON(http.StatusCreated, referral)
}

// APIUpdateReferralStatus lets an affiliate move one of its own referrals.
func APIUpdateReferralStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	affiliate := Middleware.CurrentUser(c).Affiliate

	referral, err := Models.LoadReferral(Models.DB, id)
	if err != nil {
		notFoundOr(c, err, "Referral")
		return
	}
	if referral.AffiliateID != affiliate.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied. Not authorized to update this referral"})
		return
	}

	var input StatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status field is required"})
		return
	}
	if !Models.IsValidStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   Models.ErrInvalidStatus.Error(),
			"details": "Status must be one of: " + strings.Join(Models.ValidStatuses, ", "),
		})
		return
	}

	transition, err := Models.TransitionReferral(Models.DB, referral, input.Status, input.Notes, Models.SourceAPI)
	if err != nil {
		Logging.Logger.Error("Error updating referral status", zap.Uint("referral_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": "Could not update referral status. Please try again later",
		})
		return
	}

	triggerStatusEvents(referral, transition)
	c.JSON(http.StatusOK, transitionResponse(referral, transition))
}

func APITreatments(c *gin.Context) {
	treatments, err := Models.GetActiveTreatments(Models.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, treatments)
}

func APIStats(c *gin.Context) {
	affiliate := Middleware.CurrentUser(c).Affiliate

	var total, completed int64
	err := Models.DB.Model(&Models.Referral{}).Where("affiliate_id = ?", affiliate.ID).Count(&total).Error
	if err == nil {
		err = Models.DB.Model(&Models.Referral{}).
			Where("affiliate_id = ? AND status = ?", affiliate.ID, Models.StatusCompleted).
			Count(&completed).Error
	}
	if err != nil {
		Logging.Logger.Error("Failed to count referrals", zap.Uint("affiliate_id", affiliate.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": "Could not retrieve statistics. Please try again later",
		})
		return
	}

	conversion := 0.0
	if total > 0 {
		conversion = float64(completed) / float64(total) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"total_referrals":     total,
		"completed_referrals": completed,
		"conversion_rate":     conversion,
		"total_earnings":      affiliate.TotalEarnings,
	})
}

func GeoIPLocation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"country_code": GeoIP.Lookup(c.ClientIP()).Country})
}

type TreatmentCompletedInput struct {
	Email         string `json:"email" binding:"required"`
	FullName      string `json:"full_name" binding:"required"`
	TreatmentName string `json:"treatment_name" binding:"required"`
}

var treatmentCompletedFields = []string{"email", "full_name", "treatment_name"}

// TreatmentCompleted is called by the clinic CRM when a patient finishes a
// treatment. The referral is matched by email, moved onto the first active
// treatment of the mapped group and completed.
func TreatmentCompleted(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Could not read request body"})
		return
	}
	if InboundWebhookSecret == "" && !AllowUnsignedInbound {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Inbound webhook is not configured"})
		return
	}
	if InboundWebhookSecret != "" && !Webhooks.Verify(body, InboundWebhookSecret, c.GetHeader(Webhooks.HeaderSignature)) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid signature"})
		return
	}

	var input TreatmentCompletedInput
	if err := binding.JSON.BindBody(body, &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"error":    "Missing required fields",
			"required": treatmentCompletedFields,
		})
		return
	}

	referral, err := Models.FindReferralByEmail(Models.DB, Utils.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "No matching referral found",
				"details": "No referral found with email: " + input.Email,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	mapping, err := Models.FindMappingByExternalName(Models.DB, strings.TrimSpace(input.TreatmentName))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "No matching treatment mapping found",
			"details": "No mapping found for treatment: " + input.TreatmentName,
		})
		return
	}

	treatment, err := Models.FirstActiveTreatmentInGroup(Models.DB, mapping.TreatmentGroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "No active treatment found in mapped group",
			"details": "The mapped treatment group has no active treatments",
		})
		return
	}

	var transition Models.Transition
	var previousGroup *uint
	if referral.Treatment != nil {
		previousGroup = referral.Treatment.GroupID
	}
	regrouped := !sameGroup(previousGroup, treatment.GroupID)
	err = Models.DB.Transaction(func(tx *gorm.DB) error {
		if err := Models.AssignTreatment(tx, referral, treatment); err != nil {
			return err
		}
		notes := fmt.Sprintf("Treatment completed: %s", input.TreatmentName)
		if referral.TreatmentStatus != nil && referral.TreatmentStatus.Notes != "" {
			notes = referral.TreatmentStatus.Notes
		}
		var err error
		if transition, err = Models.TransitionReferral(tx, referral, Models.StatusCompleted, &notes, Models.SourceCRMWebhook); err != nil {
			return err
		}
		// An already completed referral moved to another group earns that group's amount.
		if transition.From == Models.StatusCompleted && regrouped {
			if err := referral.CalculateAndUpdateCommission(tx, Models.SourceCRMWebhook); err != nil {
				transition.CommissionError = err
			} else {
				transition.CommissionApplied = true
			}
		}
		return Models.MarkTreatmentOutcome(tx, referral, "success", notes)
	})
	if err != nil {
		Logging.Logger.Error("Error processing treatment completion", zap.Uint("referral_id", referral.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	triggerStatusEvents(referral, transition)

	response := gin.H{
		"success":           true,
		"message":           "Referral updated successfully",
		"referral_id":       referral.ID,
		"commission_amount": referral.CommissionAmount,
	}
	if transition.CommissionError != nil {
		response["warning"] = transition.CommissionError.Error()
	}
	c.JSON(http.StatusOK, response)
}
