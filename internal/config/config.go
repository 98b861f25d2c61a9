package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Session     SessionConfig
	Resend      ResendConfig
	MercadoPago MercadoPagoConfig
	Twilio      TwilioConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Host        string
	Environment string
	BaseURL     string
	AdminPhone  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SessionConfig holds session-related configuration
type SessionConfig struct {
	Secret   string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
}

// ResendConfig holds Resend email configuration
type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// MercadoPagoConfig holds MercadoPago payment configuration
type MercadoPagoConfig struct {
	AccessToken string
	PublicKey   string
	Currency    string
}

// TwilioConfig holds Twilio SMS configuration
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env.local, then .env, if either exists
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables")
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			AdminPhone:  getEnv("ADMIN_PHONE", ""),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "ecommerce"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Session: SessionConfig{
			Secret:   getEnv("SESSION_SECRET", ""),
			MaxAge:   getEnvAsInt("SESSION_MAX_AGE", 86400*7),
			Secure:   getEnvAsBool("SESSION_SECURE", false),
			HTTPOnly: true,
		},
		Resend: ResendConfig{
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("RESEND_FROM_EMAIL", "no-reply@localhost"),
			FromName:  getEnv("RESEND_FROM_NAME", "Store"),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken: getEnv("MP_ACCESS_TOKEN", ""),
			PublicKey:   getEnv("MP_PUBLIC_KEY", ""),
			Currency:    getEnv("MP_CURRENCY", "ARS"),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ConnectionString builds the Postgres connection string, preferring a
// full DATABASE_URL when one is provided.
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// PaymentURLs returns the gateway back URLs and webhook URL for this
// deployment.
func (s *ServerConfig) PaymentURLs() (success, failure, pending, webhook string) {
	return s.BaseURL + "/api/payments/success",
		s.BaseURL + "/api/payments/failure",
		s.BaseURL + "/api/payments/pending",
		s.BaseURL + "/api/payments/webhook"
}

// IsProduction returns true when running in the production environment
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

func (c *Config) validate() error {
	if c.Session.Secret == "" {
		if c.Server.Environment == "production" {
			return fmt.Errorf("SESSION_SECRET is required in production")
		}
		log.Println("WARNING: SESSION_SECRET not set, using insecure development default")
		c.Session.Secret = "dev-session-secret-do-not-use-in-production"
	}
	return nil
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a fallback default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
