package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/market/internal/flagx"
)

var ownFlags = []string{
	"-a", "-d", "-s", "-i", "-t", "-r", "-y", "-k", "-w", "-x", "-f", "-l", "-o",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-i string   JWT issuer
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-y string   payment provider
//	-k string   Stripe API key
//	-w string   Stripe webhook endpoint secret
//	-x string   checkout currency
//	-f string   frontend base URL for checkout redirects
//	-l string   comma-separated shipping countries
//	-o int      payment gateway timeout, seconds
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, endpoint
//
// Only the flags above are considered, see flagx.FilterArgs.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.PaymentProvider, "y", config.PaymentProvider, "payment provider")
	fs.StringVar(&config.StripeAPIKey, "k", config.StripeAPIKey, "Stripe API key")
	fs.StringVar(&config.StripeWebhookSecret, "w", config.StripeWebhookSecret, "Stripe webhook secret")
	fs.StringVar(&config.Currency, "x", config.Currency, "checkout currency")
	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend base URL")
	countries := fs.String("l", strings.Join(config.ShippingCountries, ","), "shipping countries, comma separated")
	gatewayTimeout := fs.Int("o", int(config.GatewayTimeout.Seconds()), "payment gateway timeout (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 webhook archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	config.ShippingCountries = flagx.SplitList(*countries)
	config.GatewayTimeout = time.Duration(*gatewayTimeout) * time.Second
}
