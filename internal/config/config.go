package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/susu3304/sessionbook/internal/booking"
)

// devJWTSecret signs tokens for local runs only. It is refused once real
// logins or persistent balances are configured.
const devJWTSecret = "dev-only-change-me"

type Config struct {
	// Discord Bot
	DiscordToken      string
	AnnounceChannelID string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Database; empty keeps everything in memory
	DatabaseURL string

	// Web Server
	WebBind            string
	CORSAllowedOrigins []string

	// Session
	JWTSecret string

	// Cancellation economics
	Policy booking.Policy
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		AnnounceChannelID:   os.Getenv("ANNOUNCE_CHANNEL_ID"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		JWTSecret:           getEnvDefault("JWT_SECRET", devJWTSecret),
		CORSAllowedOrigins:  splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	window, err := time.ParseDuration(getEnvDefault("FULL_REFUND_WINDOW", booking.DefaultFullRefundWindow.String()))
	if err != nil {
		return nil, fmt.Errorf("FULL_REFUND_WINDOW: %w", err)
	}
	pct, err := strconv.ParseInt(getEnvDefault("LATE_CANCEL_PENALTY_PCT", strconv.Itoa(booking.DefaultLateCancelPenaltyPct)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("LATE_CANCEL_PENALTY_PCT: %w", err)
	}
	cfg.Policy = booking.Policy{FullRefundWindow: window, LateCancelPenaltyPct: pct}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("FULL_REFUND_WINDOW / LATE_CANCEL_PENALTY_PCT: %w", err)
	}
	if c.DiscordClientID != "" && c.DiscordClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required when DISCORD_CLIENT_ID is set")
	}
	if c.AnnounceChannelID != "" && c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required when ANNOUNCE_CHANNEL_ID is set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if (c.OAuthEnabled() || c.DatabaseURL != "") && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET is required when DISCORD_CLIENT_ID or DATABASE_URL is set")
	}
	return nil
}

// OAuthEnabled reports whether Discord login is configured.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != ""
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
