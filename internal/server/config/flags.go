package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-r", "-k", "-f", "-u", "-p", "-b", "-g", "-e", "-x", "-y", "-m", "-n", "-l", "-v"}

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-k string   storage backend: local | s3
//	-f string   upload directory for the local backend
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, endpoint
//	-x string   at-rest encryption key
//	-y string   searchable hash salt
//	-m string   Brevo API key
//	-n string   e-mail sender address
//	-l string   public base URL
//	-v string   log level
//
// Durations are accepted in minutes and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (local|s3)")
	fs.StringVar(&config.UploadDir, "f", config.UploadDir, "upload directory")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.EncryptionKey, "x", config.EncryptionKey, "at-rest encryption key")
	fs.StringVar(&config.SearchSalt, "y", config.SearchSalt, "searchable hash salt")
	fs.StringVar(&config.BrevoAPIKey, "m", config.BrevoAPIKey, "Brevo API key")
	fs.StringVar(&config.EmailSender, "n", config.EmailSender, "e-mail sender address")
	fs.StringVar(&config.PublicBaseURL, "l", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
