package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-grpc", "-storage", "-d", "-s", "-t", "-r", "-vt", "-url",
	"-hasher", "-notifier", "-from", "-u", "-p", "-b", "-g", "-e", "-l",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         HTTP bind address (e.g., ":8080")
//	-grpc string      gRPC bind address (e.g., ":50051")
//	-storage string   storage kind: postgres | memory
//	-d string         PostgreSQL DSN
//	-s string         JWT signing secret
//	-t int            access token validity, minutes
//	-r int            refresh token validity, minutes
//	-vt int           verification token validity, minutes
//	-url string       public base URL for activation links
//	-hasher string    password hasher: argon2id | bcrypt
//	-notifier string  log | s3
//	-from string      sender address of account mail
//	-u string         S3 root user
//	-p string         S3 root password
//	-b string         S3 bucket name
//	-g string         S3 region
//	-e string         S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string         log level
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components (-c, for one) do not break parsing. Invalid values panic.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.StorageKind, "storage", config.StorageKind, "storage kind (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	verificationTokenValidityDuration := fs.Int("vt", int(config.VerificationTokenValidityDuration.Minutes()), "verification_token_validity_duration (in minutes)")

	fs.StringVar(&config.AppBaseURL, "url", config.AppBaseURL, "public base URL for activation links")
	fs.StringVar(&config.PasswordHasher, "hasher", config.PasswordHasher, "password hasher (argon2id|bcrypt)")
	fs.StringVar(&config.Notifier, "notifier", config.Notifier, "notifier (log|s3)")
	fs.StringVar(&config.MailFrom, "from", config.MailFrom, "mail sender address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 maildrop bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.VerificationTokenValidityDuration = time.Duration(*verificationTokenValidityDuration) * time.Minute
}
