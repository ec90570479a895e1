package infrastructure

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to every collaborator. Nothing
// else in the service reads the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	// JWTSecret verifies the auth provider's HS256 access tokens.
	JWTSecret string

	TemplatePrimaryURL  string
	TemplateFallbackURL string

	ChromePath    string
	RenderSettle  time.Duration
	RenderTimeout time.Duration
	WatermarkText string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	AppBaseURL          string

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	ShutdownTimeout time.Duration
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "3000"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("SUPABASE_JWT_SECRET"),
		TemplatePrimaryURL:  os.Getenv("TEMPLATE_PRIMARY_URL"),
		TemplateFallbackURL: os.Getenv("TEMPLATE_FALLBACK_URL"),
		ChromePath:          os.Getenv("CHROME_PATH"),
		RenderSettle:        time.Millisecond * time.Duration(getEnvInt("RENDER_SETTLE_MS", 500)),
		RenderTimeout:       time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 60)),
		WatermarkText:       getEnv("WATERMARK_TEXT", "Created with Workblix"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceID:       os.Getenv("STRIPE_PRICE_ID"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:5173"),
		SendGridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		MailFrom:            getEnv("MAIL_FROM", "noreply@workblix.com"),
		MailFromName:        getEnv("MAIL_FROM_NAME", "Workblix"),
		ShutdownTimeout:     time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
