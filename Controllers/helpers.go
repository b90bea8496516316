package Controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Webhooks"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Settings used by the handlers; Configure replaces them at startup.
var (
	BaseURL              = "http://localhost:3005"
	VerificationValidFor = 48 * time.Hour
	InboundWebhookSecret = ""
	// Without a secret the CRM callback is refused unless unsigned calls are allowed.
	AllowUnsignedInbound = true
)

func Configure(cfg *Config.Config) {
	BaseURL = cfg.BaseURL
	VerificationValidFor = time.Duration(cfg.VerificationTokenHours) * time.Hour
	InboundWebhookSecret = cfg.InboundWebhookSecret
	AllowUnsignedInbound = !cfg.IsRelease()
	if InboundWebhookSecret == "" {
		if AllowUnsignedInbound {
			Logging.Logger.Warn("INBOUND_WEBHOOK_SECRET not set, treatment-completed callbacks are accepted unsigned")
		} else {
			Logging.Logger.Warn("INBOUND_WEBHOOK_SECRET not set, treatment-completed callbacks are disabled")
		}
	}
}

func landingURL(slug string) string {
	return fmt.Sprintf("%s/a/%s", BaseURL, slug)
}

func verificationURL(token string) string {
	return fmt.Sprintf("%s/auth/verify/%s", BaseURL, token)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// currentAffiliate returns the affiliate profile of the authenticated user,
// creating it if the user has none yet.
func currentAffiliate(c *gin.Context) (*Models.Affiliate, bool) {
	user := Middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	if user.Affiliate != nil && user.Affiliate.ID != 0 {
		return user.Affiliate, true
	}
	affiliate, err := Models.EnsureAffiliate(Models.DB, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load affiliate profile"})
		return nil, false
	}
	user.Affiliate = affiliate
	return affiliate, true
}

func notFoundOr(c *gin.Context, err error, what string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// parseDateRange reads start_date/end_date (YYYY-MM-DD). The end date is
// inclusive. Missing values stay zero.
func parseDateRange(startValue, endValue string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startValue != "" {
		if start, err = time.ParseInLocation(dateLayout, startValue, time.Local); err != nil {
			return start, end, errors.New("Invalid start_date, expected YYYY-MM-DD")
		}
	}
	if endValue != "" {
		if end, err = time.ParseInLocation(dateLayout, endValue, time.Local); err != nil {
			return start, end, errors.New("Invalid end_date, expected YYYY-MM-DD")
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

// transitionResponse renders the outcome of a status change; a commission
// failure is a warning, never an error status.
func transitionResponse(referral *Models.Referral, transition Models.Transition) gin.H {
	response := gin.H{
		"message":            "Treatment status updated successfully",
		"referral":           referral,
		"old_status":         transition.From,
		"new_status":         transition.To,
		"commission_applied": transition.CommissionApplied,
	}
	if transition.CommissionApplied {
		response["message"] = "Treatment status updated and commission calculated successfully"
	}
	if transition.CommissionError != nil {
		response["message"] = "Treatment status updated but commission calculation failed"
		response["warning"] = transition.CommissionError.Error()
	}
	return response
}

// referralEvent is the data sent with referral.* webhook events.
func referralEvent(referral *Models.Referral) gin.H {
	data := gin.H{
		"id":                referral.ID,
		"email":             referral.Email,
		"name":              referral.Name,
		"surname":           referral.Surname,
		"status":            referral.Status,
		"commission_amount": referral.CommissionAmount,
		"affiliate_id":      referral.AffiliateID,
		"treatment_id":      referral.TreatmentID,
	}
	if referral.Treatment != nil {
		data["treatment"] = referral.Treatment.Name
	}
	return data
}

// triggerStatusEvents fires referral.status_changed and, when a commission was
// applied, referral.completed for the owning affiliate's webhooks.
func triggerStatusEvents(referral *Models.Referral, transition Models.Transition) {
	var owner *uint
	if referral.Affiliate != nil {
		owner = &referral.Affiliate.UserID
	}
	data := referralEvent(referral)
	data["old_status"] = transition.From
	Webhooks.Trigger(Models.EventReferralStatusChanged, data, owner)
	if transition.To == Models.StatusCompleted && transition.CommissionApplied {
		Webhooks.Trigger(Models.EventReferralCompleted, referralEvent(referral), owner)
	}
}
