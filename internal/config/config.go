package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	ServerAddr        string        `env:"RUN_ADDRESS"`
	LogLevel          string        `env:"LOG_LEVEL"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	RedisAddr         string        `env:"REDIS_ADDRESS"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	MailGatewayURI    string        `env:"MAIL_GATEWAY_ADDRESS"`
	JWTSecretKey      string        `env:"JWT_SECRET_KEY"`
	ReportInterval    time.Duration `env:"REPORT_INTERVAL"`
	LoginAttemptLimit int           `env:"LOGIN_ATTEMPT_LIMIT"`
	LoginAttemptTTL   time.Duration `env:"LOGIN_ATTEMPT_TTL"`
	ResetCodeTTL      time.Duration `env:"RESET_CODE_TTL"`
}

func NewConfig() (Config, error) {
	cfg := Config{}

	flag.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database connection string [env:DATABASE_URI]")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis server address [env:REDIS_ADDRESS]")
	flag.StringVar(&cfg.RedisPassword, "p", "", "redis server password [env:REDIS_PASSWORD]")
	flag.StringVar(&cfg.MailGatewayURI, "m", "", "mail gateway URI [env:MAIL_GATEWAY_ADDRESS]")
	flag.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to sign tokens [env:JWT_SECRET_KEY]")
	flag.DurationVar(&cfg.ReportInterval, "i", 1*time.Hour, "analytics report refresh interval [env:REPORT_INTERVAL]")
	flag.IntVar(&cfg.LoginAttemptLimit, "n", 5, "failed login attempts before lockout [env:LOGIN_ATTEMPT_LIMIT]")
	flag.DurationVar(&cfg.LoginAttemptTTL, "t", 15*time.Minute, "failed login counter lifetime [env:LOGIN_ATTEMPT_TTL]")
	flag.DurationVar(&cfg.ResetCodeTTL, "c", 10*time.Minute, "password reset code lifetime [env:RESET_CODE_TTL]")
	flag.Parse()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	return cfg, nil
}
