package Controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Email"
	"github.com/mertgercek/AffiliateSystemForClinichub/GeoIP"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register creates the user and its affiliate profile and sends the
// verification link. A failed email only downgrades the response to a warning.
func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	Models.DB.Model(&Models.User{}).Where("username = ?", input.Username).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}
	Models.DB.Model(&Models.User{}).Where("email = ?", Utils.NormalizeEmail(input.Email)).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	location := GeoIP.Lookup(c.ClientIP())
	user := Models.User{
		Username:        input.Username,
		Email:           input.Email,
		Password:        input.Password,
		Role:            Models.RoleAffiliate,
		EmailSubscribed: true,
	}
	var token string

	err := Models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if token, err = user.IssueVerificationToken(tx, VerificationValidFor); err != nil {
			return err
		}
		if _, err = user.SaveUser(tx); err != nil {
			return err
		}
		slug, err := Models.GenerateUniqueSlug(tx)
		if err != nil {
			return err
		}
		affiliate := Models.Affiliate{
			UserID:    user.ID,
			Slug:      slug,
			Country:   location.Country,
			City:      location.City,
			Latitude:  location.Latitude,
			Longitude: location.Longitude,
			IPAddress: c.ClientIP(),
		}
		if err := tx.Create(&affiliate).Error; err != nil {
			return err
		}
		user.Affiliate = &affiliate
		return nil
	})
	if err != nil {
		Logging.Logger.Error("Registration failed", zap.String("email", input.Email), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Registration failed"})
		return
	}

	if err := Email.SendVerificationEmail(user.Email, verificationURL(token)); err != nil {
		c.JSON(http.StatusCreated, gin.H{
			"message": "Registration successful",
			"warning": "Verification email could not be sent. Please contact support.",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful. Please check your email to verify your account."})
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid, token, err := Models.LoginCheck(Models.DB, input.Email, input.Password)
	if errors.Is(err, Models.ErrEmailNotVerified) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email first. Check your inbox for the verification link."})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	user, _ := Models.GetUserByID(Models.DB, uid)
	Models.TouchLastSeen(Models.DB, uid, time.Now().UTC())
	c.JSON(http.StatusOK, gin.H{"message": "Login Successful", "jwt": token, "role": user.Role})
}

// VerifyEmail consumes the link sent at registration and welcomes the affiliate.
func VerifyEmail(c *gin.Context) {
	user, err := Models.VerifyEmail(Models.DB, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification token"})
		return
	}

	if user.Affiliate != nil {
		if err := Email.SendWelcomeEmail(user.Email, user.Username, landingURL(user.Affiliate.Slug)); err != nil {
			Logging.Logger.Warn("Welcome email not sent", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified and affiliate approved successfully. You can now log in."})
}

// ResendVerification issues a fresh token for the authenticated user.
func ResendVerification(c *gin.Context) {
	user := Middleware.CurrentUser(c)
	if user.EmailVerified {
		c.JSON(http.StatusOK, gin.H{"message": "Your email is already verified."})
		return
	}

	token, err := user.IssueVerificationToken(Models.DB, VerificationValidFor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not issue verification token"})
		return
	}
	if err := Email.SendVerificationEmail(user.Email, verificationURL(token)); err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Verification token renewed", "warning": "Verification email could not be sent."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email has been resent. Please check your inbox."})
}

func CurrentUser(c *gin.Context) {
	user := Middleware.CurrentUser(c)

	var output struct {
		ID              uint              `json:"ID"`
		Username        string            `json:"username"`
		Email           string            `json:"email"`
		Role            string            `json:"role"`
		EmailVerified   bool              `json:"email_verified"`
		EmailSubscribed bool              `json:"email_subscribed"`
		Affiliate       *Models.Affiliate `json:"affiliate,omitempty"`
		LandingURL      string            `json:"landing_url,omitempty"`
	}
	output.ID = user.ID
	output.Username = user.Username
	output.Email = user.Email
	output.Role = user.Role
	output.EmailVerified = user.EmailVerified
	output.EmailSubscribed = user.EmailSubscribed
	if user.Affiliate != nil {
		output.Affiliate = user.Affiliate
		output.LandingURL = landingURL(user.Affiliate.Slug)
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": output})
}

func UpdateEmailSubscription(c *gin.Context) {
	var input struct {
		Subscribed *bool `json:"subscribed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := Middleware.CurrentUser(c)
	if err := Models.DB.Model(&Models.User{}).Where("id = ?", user.ID).
		Update("email_subscribed", *input.Subscribed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email preferences updated", "email_subscribed": *input.Subscribed})
}

func SaveFcmToken(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetUint(Middleware.ContextUserID)
	var deviceToken Models.DeviceToken
	err := Models.DB.Where("value = ?", input.Token).
		Assign(Models.DeviceToken{UserID: userID}).
		FirstOrCreate(&deviceToken, Models.DeviceToken{Value: input.Token}).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token saved"})
}
