package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/akratov/phoneauth/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultOTPTTL        = 5 * time.Minute
	defaultTokenTTL      = 24 * time.Hour
	defaultSMSTimeout    = 10 * time.Second
	defaultSweepInterval = 10 * time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the phoneauth service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing session tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	// Development exposes issued otp codes in API responses, production never does
	Environment string

	// How long an issued otp code stays verifiable
	OTPTTL time.Duration

	// Session token lifetime
	TokenTTL time.Duration

	// Upper bound on a single sms gateway call
	SMSTimeout time.Duration

	// How often expired rows are pruned
	SweepInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		ListenAddr:    defaultListenAddr,
		Environment:   defaultEnvironment,
		OTPTTL:        defaultOTPTTL,
		TokenTTL:      defaultTokenTTL,
		SMSTimeout:    defaultSMSTimeout,
		SweepInterval: defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":    setString(&c.ListenAddr),
		"DATABASE_URI":   setString(&c.DatabaseDSN),
		"SECRET_KEY":     setString(&c.SecretKey),
		"LOG_LEVEL":      setString(&c.LogLevel),
		"ENVIRONMENT":    setString(&c.Environment),
		"OTP_TTL":        setDuration(&c.OTPTTL),
		"TOKEN_TTL":      setDuration(&c.TokenTTL),
		"SMS_TIMEOUT":    setDuration(&c.SMSTimeout),
		"SWEEP_INTERVAL": setDuration(&c.SweepInterval),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("phoneauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.OTPTTL, "otp-ttl", c.OTPTTL, "How long an issued otp code stays verifiable")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Session token lifetime")
	fs.DurationVar(&c.SMSTimeout, "sms-timeout", c.SMSTimeout, "Upper bound on a single sms gateway call")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "How often expired rows are pruned")

	return fs.Parse(args)
}
