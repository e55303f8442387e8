package common

import (
	"fmt"
	"os"
	"strings"
)

const (
	DefaultCurrency     = "usd"
	PaymentIntentPrefix = "pi_"
	DashboardBaseURL    = "https://dashboard.stripe.com"
	ServiceName         = "stripe-sandbox"
)

type Config struct {
	Port            string
	StripeSecretKey string
	WebhookSecret   string
}

func Load() (Config, error) {
	cfg := Config{
		Port:            GetEnv("PORT", "4242"),
		StripeSecretKey: GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret:   GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	}

	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("variável de ambiente STRIPE_SECRET_KEY é obrigatória")
	}

	return cfg, nil
}

// Mode deriva test/live do prefixo da chave secreta, sem nunca expor a chave.
func (c Config) Mode() string {
	if strings.HasPrefix(c.StripeSecretKey, "sk_live_") {
		return "live"
	}
	return "test"
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
