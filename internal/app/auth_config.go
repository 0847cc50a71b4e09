package app

import (
	"strings"
	"time"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/pkg/mail"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	return auth.JWTConfig{
		Secret:   c.JWT.Secret,
		Issuer:   c.JWT.Issuer,
		TokenTTL: ttl,
	}
}

// OTPServiceConfig converts AuthConfig into OTP ledger parameters.
func (c AuthConfig) OTPServiceConfig() auth.OTPConfig {
	digits := c.OTP.Digits
	if digits <= 0 {
		digits = auth.DefaultOTPDigits
	}

	expiry := c.OTP.Expiry
	if expiry <= 0 {
		expiry = auth.DefaultOTPExpiry
	}

	return auth.OTPConfig{
		Digits: digits,
		Expiry: expiry,
	}
}

// SMTPSettings converts EmailConfig into mailer parameters.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	timeout := c.SMTP.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  timeout,
	}
}

// DatabaseSettings converts DatabaseConfig into the database package config.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch cfg.Driver {
	case "", "sqlite":
		cfg.Driver = "sqlite"
	case "postgres", "postgresql":
		cfg.Driver = "postgres"
		cfg.Host = strings.TrimSpace(c.Postgres.Host)
		cfg.Port = c.Postgres.Port
		cfg.Name = strings.TrimSpace(c.Postgres.Database)
		cfg.User = strings.TrimSpace(c.Postgres.Username)
		cfg.Password = strings.TrimSpace(c.Postgres.Password)
	case "mysql":
		cfg.Host = strings.TrimSpace(c.MySQL.Host)
		cfg.Port = c.MySQL.Port
		cfg.Name = strings.TrimSpace(c.MySQL.Database)
		cfg.User = strings.TrimSpace(c.MySQL.Username)
		cfg.Password = strings.TrimSpace(c.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return cfg
}
