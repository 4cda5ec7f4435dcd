package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PointsConfig — политика бонуса за регулярность: если за скользящее окно
// WindowDays набрано не меньше MinDays различных дат одной активности,
// начисление умножается на Multiplier (с усечением до целого).
type PointsConfig struct {
	Multiplier float64
	MinDays    int
	WindowDays int
}

type Config struct {
	DatabasePath string
	BackupDir    string
	HTTPAddr     string
	LogLevel     string
	Env          string // dev|prod
	SentryDSN    string
	Location     *time.Location

	AdminLogin    string
	AdminPassword string

	Points PointsConfig

	BackupInterval   time.Duration
	DispatchInterval time.Duration
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Asia/Tashkent")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	multiplier, err := parseFloat("POINTS_BONUS_MULTIPLIER", 1.5)
	if err != nil {
		return nil, err
	}
	minDays, err := parseInt("POINTS_BONUS_MIN_DAYS", 6)
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("POINTS_BONUS_WINDOW_DAYS", 90)
	if err != nil {
		return nil, err
	}
	backupHours, err := parseInt("BACKUP_INTERVAL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	dispatchMinutes, err := parseInt("SMS_DISPATCH_INTERVAL_MINUTES", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath:  getenv("DATABASE_PATH", "./data/mahalla.db"),
		BackupDir:     getenv("BACKUP_DIR", "./data/backups"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           getenv("ENV", "dev"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Location:      loc,
		AdminLogin:    getenv("ADMIN_LOGIN", "admin"),
		AdminPassword: mustEnv("ADMIN_PASSWORD"),
		Points: PointsConfig{
			Multiplier: multiplier,
			MinDays:    minDays,
			WindowDays: windowDays,
		},
		BackupInterval:   time.Duration(backupHours) * time.Hour,
		DispatchInterval: time.Duration(dispatchMinutes) * time.Minute,
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func parseFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}
