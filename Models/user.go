package Models

import (
	"errors"
	"html"
	"strings"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Utils"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/Token"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleAffiliate = "affiliate"
)

var (
	ErrUserNotFound       = errors.New("User not found")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrEmailNotVerified   = errors.New("Please verify your email first")
	ErrTokenExpired       = errors.New("Invalid or expired verification token")
)

type User struct {
	gorm.Model
	Username          string        `gorm:"size:64;not null;unique" json:"username"`
	Email             string        `gorm:"size:120;not null;unique" json:"email"`
	Password          string        `gorm:"size:256;not null" json:"-"`
	Role              string        `gorm:"size:20;not null" json:"role"`
	EmailVerified     bool          `json:"email_verified"`
	VerificationToken *string       `gorm:"size:100;unique" json:"-"`
	TokenExpiry       *time.Time    `json:"-"`
	LastSeen          *time.Time    `json:"last_seen"`
	EmailSubscribed   bool          `json:"email_subscribed"`
	Affiliate         *Affiliate    `json:"affiliate,omitempty"`
	APIKeys           []APIKey      `json:"-"`
	Tokens            []DeviceToken `gorm:"foreignKey:UserID" json:"-"`
}

type APIKey struct {
	gorm.Model
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	User       *User      `json:"-"`
	Name       string     `gorm:"size:64;not null" json:"name"`
	Key        string     `gorm:"size:64;not null;unique" json:"key"`
	LastUsedAt *time.Time `json:"last_used_at"`
	IsActive   bool       `json:"is_active"`
}

type DeviceToken struct {
	gorm.Model
	UserID uint   `gorm:"index"`
	Value  string `json:"value" gorm:"unique"`
}

func (user *User) IsAdmin() bool {
	return user.Role == RoleAdmin
}

func GetUserByID(db *gorm.DB, uid uint) (User, error) {
	var user User

	if err := db.Preload("Affiliate").First(&user, uid).Error; err != nil {
		return user, ErrUserNotFound
	}

	user.PrepareGive()

	return user, nil
}

func GetAdminIDs(db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.Model(&User{}).Where("role = ?", RoleAdmin).Pluck("id", &ids).Error
	return ids, err
}

func GetFCMsByID(db *gorm.DB, uid uint) ([]string, error) {
	var fcms []string
	if err := db.Model(&DeviceToken{}).Where("user_id = ?", uid).Pluck("value", &fcms).Error; err != nil {
		return []string{}, errors.New("No FCMS found")
	}

	return fcms, nil
}

func (user *User) PrepareGive() {
	user.Password = ""
}

func VerifyPassword(password, hashedPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// LoginCheck authenticates by email and issues a session token.
func LoginCheck(db *gorm.DB, email string, password string) (uint, string, error) {
	user := User{}

	if err := db.Model(User{}).Where("email = ?", Utils.NormalizeEmail(email)).Take(&user).Error; err != nil {
		return 0, "", ErrInvalidCredentials
	}

	if err := VerifyPassword(password, user.Password); err != nil {
		return 0, "", ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return 0, "", ErrEmailNotVerified
	}

	token, err := Token.GenerateToken(user.ID)
	if err != nil {
		return 0, "", err
	}

	return user.ID, token, nil
}

func (user *User) SaveUser(db *gorm.DB) (*User, error) {
	if err := user.HashPassword(); err != nil {
		return &User{}, err
	}

	if user.Role == "" {
		user.Role = RoleAffiliate
	}

	if err := db.Create(user).Error; err != nil {
		return &User{}, err
	}

	return user, nil
}

func (user *User) HashPassword() error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)

	user.Username = html.EscapeString(strings.TrimSpace(user.Username))
	user.Email = Utils.NormalizeEmail(user.Email)

	return nil
}

// IssueVerificationToken stores a fresh token valid for the given duration.
func (user *User) IssueVerificationToken(db *gorm.DB, validFor time.Duration) (string, error) {
	token := Utils.SecureToken(32)
	expiry := time.Now().Add(validFor)
	user.VerificationToken = &token
	user.TokenExpiry = &expiry
	if user.ID == 0 {
		return token, nil
	}
	err := db.Model(user).Updates(map[string]interface{}{
		"verification_token": token,
		"token_expiry":       expiry,
	}).Error
	return token, err
}

// VerifyEmail consumes a verification token, marks the email verified and approves the affiliate.
func VerifyEmail(db *gorm.DB, token string) (*User, error) {
	var user User
	if err := db.Preload("Affiliate").Where("verification_token = ?", token).First(&user).Error; err != nil {
		return nil, ErrTokenExpired
	}
	if user.TokenExpiry != nil && time.Now().After(*user.TokenExpiry) {
		return nil, ErrTokenExpired
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"email_verified":     true,
			"verification_token": nil,
			"token_expiry":       nil,
		}).Error; err != nil {
			return err
		}
		if user.Affiliate != nil {
			return tx.Model(user.Affiliate).Update("approved", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ClearExpiredVerificationTokens drops tokens that can no longer be used.
func ClearExpiredVerificationTokens(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&User{}).
		Where("verification_token IS NOT NULL AND token_expiry IS NOT NULL AND token_expiry < ?", now).
		Updates(map[string]interface{}{"verification_token": nil, "token_expiry": nil})
	return result.RowsAffected, result.Error
}

func TouchLastSeen(db *gorm.DB, uid uint, at time.Time) error {
	return db.Model(&User{}).Where("id = ?", uid).UpdateColumn("last_seen", at).Error
}

func GenerateAPIKey(db *gorm.DB, userID uint, name string) (*APIKey, error) {
	key := &APIKey{
		UserID:   userID,
		Name:     name,
		Key:      Utils.SecureToken(32),
		IsActive: true,
	}
	if err := db.Create(key).Error; err != nil {
		return nil, err
	}
	return key, nil
}

// FindActiveAPIKey resolves an API key to its owning user.
func FindActiveAPIKey(db *gorm.DB, key string) (*APIKey, error) {
	var apiKey APIKey
	err := db.Preload("User.Affiliate").Where(&APIKey{Key: key, IsActive: true}).First(&apiKey).Error
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}
