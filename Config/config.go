package Config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	BaseURL        string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	APISecret              string
	TokenHourLifespan      int
	VerificationTokenHours int

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	SMTPSender string

	GeoIPDBPath    string
	DefaultCountry string

	CaptchaSecret    string
	CaptchaVerifyURL string

	FirebaseEnabled            bool
	FirebaseServiceAccountPath string

	WebhookWorkers       int
	WebhookQueueSize     int
	WebhookTimeout       time.Duration
	InboundWebhookSecret string

	APIRateLimit  int
	APIRateWindow time.Duration

	AdminEmail    string
	AdminPassword string

	ReconcileInterval time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Env:            v.GetString("GIN_MODE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		BaseURL:        strings.TrimRight(v.GetString("BASE_URL"), "/"),

		DBDriver:   v.GetString("DB_DRIVER"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		APISecret:              v.GetString("API_SECRET"),
		TokenHourLifespan:      v.GetInt("TOKEN_HOUR_LIFESPAN"),
		VerificationTokenHours: v.GetInt("VERIFICATION_TOKEN_HOURS"),

		SMTPHost:   v.GetString("SMTP_HOST"),
		SMTPPort:   v.GetInt("SMTP_PORT"),
		SMTPUser:   v.GetString("SMTP_USER"),
		SMTPPass:   v.GetString("SMTP_PASS"),
		SMTPSender: v.GetString("SMTP_SENDER"),

		GeoIPDBPath:    v.GetString("GEOIP_DB_PATH"),
		DefaultCountry: v.GetString("DEFAULT_COUNTRY"),

		CaptchaSecret:    v.GetString("CAPTCHA_SECRET"),
		CaptchaVerifyURL: v.GetString("CAPTCHA_VERIFY_URL"),

		FirebaseEnabled:            v.GetBool("FIREBASE_ENABLED"),
		FirebaseServiceAccountPath: v.GetString("FIREBASE_SERVICE_ACCOUNT_PATH"),

		WebhookWorkers:       v.GetInt("WEBHOOK_WORKERS"),
		WebhookQueueSize:     v.GetInt("WEBHOOK_QUEUE_SIZE"),
		WebhookTimeout:       v.GetDuration("WEBHOOK_TIMEOUT"),
		InboundWebhookSecret: v.GetString("INBOUND_WEBHOOK_SECRET"),

		APIRateLimit:  v.GetInt("API_RATE_LIMIT"),
		APIRateWindow: v.GetDuration("API_RATE_WINDOW"),

		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),

		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
	}

	log.Printf("Configuration loaded: port=%s, mode=%s, db=%s/%s", cfg.Port, cfg.Env, cfg.DBDriver, cfg.DBName)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3005")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("BASE_URL", "http://localhost:3005")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "clinichub")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "clinichub.db")

	v.SetDefault("API_SECRET", "change-me")
	v.SetDefault("TOKEN_HOUR_LIFESPAN", 24)
	v.SetDefault("VERIFICATION_TOKEN_HOURS", 48)

	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_SENDER", "noreply@clinichub.com")

	v.SetDefault("DEFAULT_COUNTRY", "TR")
	v.SetDefault("CAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify")

	v.SetDefault("WEBHOOK_WORKERS", 4)
	v.SetDefault("WEBHOOK_QUEUE_SIZE", 256)
	v.SetDefault("WEBHOOK_TIMEOUT", 5*time.Second)

	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_RATE_WINDOW", time.Hour)

	v.SetDefault("RECONCILE_INTERVAL", time.Hour)
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func (c *Config) IsRelease() bool {
	return c.Env == "release"
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
