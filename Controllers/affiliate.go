package Controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Analytics"
	"github.com/mertgercek/AffiliateSystemForClinichub/Captcha"
	"github.com/mertgercek/AffiliateSystemForClinichub/GeoIP"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Notifications"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"
	"github.com/mertgercek/AffiliateSystemForClinichub/Webhooks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type dashboardReferral struct {
	ID               uint   `json:"id"`
	CreatedAt        string `json:"created_at"`
	Name             string `json:"name"`
	Surname          string `json:"surname"`
	TreatmentGroup   string `json:"treatment_group"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Status           string `json:"status"`
	CommissionAmount string `json:"commission_amount"`
}

// AffiliateDashboard returns the authenticated affiliate's referrals and figures.
func AffiliateDashboard(c *gin.Context) {
	affiliate, ok := currentAffiliate(c)
	if !ok {
		return
	}

	referrals, err := Models.ListReferrals(Models.DB, &affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]dashboardReferral, 0, len(referrals))
	for _, r := range referrals {
		group := "No Group"
		if r.Treatment != nil && r.Treatment.Group != nil {
			group = r.Treatment.Group.Name
		}
		rows = append(rows, dashboardReferral{
			ID:               r.ID,
			CreatedAt:        r.CreatedAt.Format(dateLayout),
			Name:             r.Name,
			Surname:          r.Surname,
			TreatmentGroup:   group,
			Email:            r.Email,
			Phone:            r.Phone,
			Status:           r.Status,
			CommissionAmount: r.CommissionAmount.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"affiliate":     affiliate,
		"affiliate_url": landingURL(affiliate.Slug),
		"referrals":     rows,
		"stats":         Analytics.GetAffiliateDashboard(referrals, time.Now()),
	})
}

// Landing is the public page data for an affiliate's referral link.
func Landing(c *gin.Context) {
	affiliate, err := Models.GetAffiliateBySlug(Models.DB, c.Param("slug"))
	if err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}
	treatments, err := Models.GetActiveTreatments(Models.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"affiliate":  gin.H{"slug": affiliate.Slug},
		"treatments": treatments,
		"country":    GeoIP.Lookup(c.ClientIP()).Country,
	})
}

type PublicReferralInput struct {
	Name         string `json:"name" form:"name" binding:"required"`
	Surname      string `json:"surname" form:"surname" binding:"required"`
	Email        string `json:"email" form:"email" binding:"required,email"`
	Phone        string `json:"phone" form:"phone" binding:"required"`
	TreatmentID  uint   `json:"treatment_id" form:"treatment_id" binding:"required"`
	CaptchaToken string `json:"captcha_token" form:"h-captcha-response"`
}

// CreatePublicReferral stores a referral submitted through an affiliate's
// landing page.
func CreatePublicReferral(c *gin.Context) {
	affiliate, err := Models.GetAffiliateBySlug(Models.DB, c.Param("slug"))
	if err != nil {
		notFoundOr(c, err, "Affiliate")
		return
	}

	var input PublicReferralInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := Captcha.Default.Verify(c.Request.Context(), input.CaptchaToken, c.ClientIP()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CAPTCHA verification failed"})
		return
	}

	ip := c.ClientIP()
	location := GeoIP.Lookup(ip)
	referral := Models.Referral{
		AffiliateID: affiliate.ID,
		TreatmentID: input.TreatmentID,
		Name:        input.Name,
		Surname:     input.Surname,
		Email:       Utils.NormalizeEmail(input.Email),
		Phone:       Utils.FormatPhoneNumber(input.Phone),
		IPAddress:   ip,
		Country:     location.Country,
		City:        location.City,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,
	}
	if err := Models.CreateReferral(Models.DB, &referral); err != nil {
		if errors.Is(err, Models.ErrInactiveTreatment) || errors.Is(err, Models.ErrMissingReferralField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		Logging.Logger.Error("Could not create referral", zap.Uint("affiliate_id", affiliate.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create referral"})
		return
	}

	announceReferral(Models.DB, affiliate, &referral)
	c.JSON(http.StatusCreated, gin.H{"message": "Referral submitted successfully.", "referral_id": referral.ID})
}

// announceReferral fires referral.created and notifies the admins.
func announceReferral(db *gorm.DB, affiliate *Models.Affiliate, referral *Models.Referral) {
	Webhooks.Trigger(Models.EventReferralCreated, referralEvent(referral), &affiliate.UserID)

	message := fmt.Sprintf("New referral %s %s", referral.Name, referral.Surname)
	link := fmt.Sprintf("/admin/referrals/%d", referral.ID)
	if err := Notifications.NotifyAdmins(db, Models.NotificationNewReferral, message, link); err != nil {
		Logging.Logger.Warn("Failed to notify admins of referral", zap.Uint("referral_id", referral.ID), zap.Error(err))
	}
}
