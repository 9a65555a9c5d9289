package config

import (
	"errors"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const devJWTSecret = "dev-secret"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when APP_ENV is prod")

type Config struct {
	Env         string `env:"APP_ENV" env-default:"local"`
	Port        string `env:"PORT" env-default:"8080"`
	StoreDriver string `env:"STORE_DRIVER" env-default:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET" env-default:"dev-secret"`

	Admin    Admin
	Payment  Payment
	PayPal   PayPal
	Brevo    Brevo
	Meeting  Meeting
	Exchange Exchange
	Cert     Certificates
	Shutdown time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Admin struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
	FullName string `env:"ADMIN_FULL_NAME" env-default:"Administrator"`
}

type Payment struct {
	Delay     time.Duration `env:"PAYMENT_DELAY" env-default:"2s"`
	MaxCharge float64       `env:"PAYMENT_MAX_CHARGE" env-default:"10000"`
}

// MaxChargeAmount is the largest single charge the simulated processor accepts.
func (p Payment) MaxChargeAmount() decimal.Decimal {
	return decimal.NewFromFloat(p.MaxCharge)
}

type PayPal struct {
	ClientID string `env:"PAYPAL_CLIENT_ID"`
	Secret   string `env:"PAYPAL_SECRET"`
	APIBase  string `env:"PAYPAL_API_BASE" env-default:"https://api-m.sandbox.paypal.com"`
}

func (p PayPal) Enabled() bool {
	return p.ClientID != "" && p.Secret != ""
}

type Brevo struct {
	APIKey      string `env:"BREVO_API_KEY"`
	SenderEmail string `env:"BREVO_SENDER_EMAIL" env-default:"no-reply@example.com"`
	SenderName  string `env:"BREVO_SENDER_NAME" env-default:"Language Tutor"`
}

type Meeting struct {
	RoomBaseURL string `env:"MEETING_ROOM_BASE_URL" env-default:"https://meet.jit.si"`
}

type Exchange struct {
	APIKey  string        `env:"EXCHANGE_RATE_API_KEY"`
	Refresh time.Duration `env:"EXCHANGE_RATE_REFRESH" env-default:"24h"`
}

type Certificates struct {
	CloudinaryURL string `env:"CLOUDINARY_URL"`
	Milestone     int    `env:"CERTIFICATE_MILESTONE" env-default:"10"`
}

// Load reads .env when present, then the process environment. The
// development JWT secret is refused in prod.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Env == EnvProd && (cfg.JWTSecret == "" || cfg.JWTSecret == devJWTSecret) {
		return Config{}, ErrMissingJWTSecret
	}
	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("🔥 Error loading config: %v", err)
	}
	return cfg
}
