package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSecret is returned by Load when a signing secret is absent. The
// process must not start serving traffic without both secrets.
var ErrMissingSecret = errors.New("missing required secret")

// ErrSharedSecret is returned when the access and refresh secrets are equal.
var ErrSharedSecret = errors.New("access and refresh secrets must differ")

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	MailProviderSMTP    = "smtp"
	MailProviderMailgun = "mailgun"
)

type Config struct {
	Port        string
	Env         string
	Production  bool
	FrontendURL string

	DatabaseDriver string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	RunMigrations  bool

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int

	AdminEmail    string
	AdminPassword string

	SentryDSN     string
	CloudinaryURL string

	LoginRateLimit   RateLimit
	ContactRateLimit RateLimit

	CronSecret           string
	ContactRetention     time.Duration
	MaintenanceBatchSize int

	Mail Mail
}

type RateLimit struct {
	Max    int
	Window time.Duration
}

type Mail struct {
	Provider      string
	From          string
	NotifyTo      string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	MailgunDomain string
	MailgunAPIKey string
}

// Enabled reports whether contact notifications should be sent.
func (m Mail) Enabled() bool {
	return m.Provider != "" && m.NotifyTo != ""
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("RUN_MIGRATIONS_ON_STARTUP", false)
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "7d")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("LOGIN_RATE_LIMIT_MAX", 5)
	v.SetDefault("LOGIN_RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("CONTACT_RATE_LIMIT_MAX", 3)
	v.SetDefault("CONTACT_RATE_LIMIT_WINDOW", "1h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("CONTACT_RETENTION", "180d")
	v.SetDefault("MAINTENANCE_BATCH_SIZE", 500)

	return v
}

// Load resolves the configuration from the process environment. It is called
// once at startup; the result is passed down explicitly.
func Load() (Config, error) {
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           str(v, "PORT"),
		FrontendURL:    str(v, "FRONTEND_URL"),
		DatabaseDriver: strings.ToLower(str(v, "DATABASE_DRIVER")),
		DatabaseURL:    str(v, "DATABASE_URL"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		RunMigrations:  v.GetBool("RUN_MIGRATIONS_ON_STARTUP"),
		AccessSecret:   str(v, "JWT_ACCESS_SECRET"),
		RefreshSecret:  str(v, "JWT_REFRESH_SECRET"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),
		AdminEmail:     strings.ToLower(str(v, "ADMIN_EMAIL")),
		AdminPassword:  str(v, "ADMIN_PASSWORD"),
		SentryDSN:      str(v, "SENTRY_DSN"),
		CloudinaryURL:  str(v, "CLOUDINARY_URL"),
		CronSecret:     str(v, "CRON_SECRET"),
		Mail: Mail{
			Provider:      strings.ToLower(str(v, "MAIL_PROVIDER")),
			SMTPHost:      str(v, "SMTP_HOST"),
			SMTPPort:      v.GetInt("SMTP_PORT"),
			SMTPUser:      str(v, "SMTP_USER"),
			SMTPPass:      str(v, "SMTP_PASS"),
			MailgunDomain: str(v, "MAILGUN_DOMAIN"),
			MailgunAPIKey: str(v, "MAILGUN_API_KEY"),
		},
	}

	cfg.Env = firstNonEmpty(str(v, "APP_ENV"), str(v, "NODE_ENV"), "development")
	cfg.Production = cfg.Env == "production" || str(v, "RAILWAY_ENVIRONMENT_NAME") == "production"

	cfg.Mail.From = firstNonEmpty(str(v, "SMTP_FROM"), cfg.Mail.SMTPUser)
	cfg.Mail.NotifyTo = firstNonEmpty(str(v, "ADMIN_NOTIFY_EMAIL"), cfg.AdminEmail)

	if cfg.AccessSecret == "" {
		return Config{}, fmt.Errorf("%w: JWT_ACCESS_SECRET", ErrMissingSecret)
	}
	if cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("%w: JWT_REFRESH_SECRET", ErrMissingSecret)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, ErrSharedSecret
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required env: DATABASE_URL")
	}
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	var err error
	if cfg.AccessTTL, err = ParseDuration(str(v, "JWT_ACCESS_EXPIRY")); err != nil {
		return Config{}, fmt.Errorf("JWT_ACCESS_EXPIRY: %w", err)
	}
	if cfg.RefreshTTL, err = ParseDuration(str(v, "JWT_REFRESH_EXPIRY")); err != nil {
		return Config{}, fmt.Errorf("JWT_REFRESH_EXPIRY: %w", err)
	}
	if cfg.LoginRateLimit, err = rateLimit(v, "LOGIN_RATE_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.ContactRateLimit, err = rateLimit(v, "CONTACT_RATE_LIMIT"); err != nil {
		return Config{}, err
	}

	if cfg.ContactRetention, err = ParseDuration(str(v, "CONTACT_RETENTION")); err != nil {
		return Config{}, fmt.Errorf("CONTACT_RETENTION: %w", err)
	}
	if cfg.MaintenanceBatchSize = v.GetInt("MAINTENANCE_BATCH_SIZE"); cfg.MaintenanceBatchSize <= 0 {
		return Config{}, fmt.Errorf("MAINTENANCE_BATCH_SIZE must be positive")
	}

	if cfg.AdminPassword != "" && cfg.AdminEmail == "" {
		return Config{}, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	if err := cfg.Mail.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (m Mail) validate() error {
	switch m.Provider {
	case "":
		return nil
	case MailProviderSMTP:
		if m.SMTPHost == "" || m.From == "" {
			return fmt.Errorf("smtp mail provider requires SMTP_HOST and SMTP_FROM or SMTP_USER")
		}
	case MailProviderMailgun:
		if m.MailgunDomain == "" || m.MailgunAPIKey == "" || m.From == "" {
			return fmt.Errorf("mailgun mail provider requires MAILGUN_DOMAIN, MAILGUN_API_KEY and SMTP_FROM")
		}
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", m.Provider)
	}
	return nil
}

func rateLimit(v *viper.Viper, prefix string) (RateLimit, error) {
	window, err := ParseDuration(str(v, prefix+"_WINDOW"))
	if err != nil {
		return RateLimit{}, fmt.Errorf("%s_WINDOW: %w", prefix, err)
	}
	limit := RateLimit{Max: v.GetInt(prefix + "_MAX"), Window: window}
	if limit.Max <= 0 {
		return RateLimit{}, fmt.Errorf("%s_MAX must be positive", prefix)
	}
	return limit, nil
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
