package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/market/internal/flagx"
	"github.com/dmitrijs2005/market/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "15m"
// style strings and integer nanoseconds. Zero values leave the
// corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PaymentProvider              string         `json:"payment_provider"`
	StripeAPIKey                 string         `json:"stripe_api_key"`
	StripeWebhookSecret          string         `json:"stripe_webhook_secret"`
	Currency                     string         `json:"currency"`
	FrontendURL                  string         `json:"frontend_url"`
	ShippingCountries            []string       `json:"shipping_countries"`
	GatewayTimeout               timex.Duration `json:"gateway_timeout"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the file named by -c/-config, if any.
// An unreadable file or invalid JSON panics: the server must not start
// with a half-applied configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.PaymentProvider, c.PaymentProvider)
	setString(&config.StripeAPIKey, c.StripeAPIKey)
	setString(&config.StripeWebhookSecret, c.StripeWebhookSecret)
	setString(&config.Currency, c.Currency)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.GatewayTimeout.Duration > 0 {
		config.GatewayTimeout = c.GatewayTimeout.Duration
	}
	if len(c.ShippingCountries) > 0 {
		config.ShippingCountries = c.ShippingCountries
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
