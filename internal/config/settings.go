package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultMaxRetries      = 3
	defaultRefreshSchedule = "0 5 0 * * *"
	defaultPort            = "8080"
)

// Settings keeps runtime settings read from the environment.
type Settings struct {
	DatabaseDriver  string
	DatabaseDSN     string
	MaxRetries      int
	RefreshSchedule string
	Port            string
	AllowedOrigins  []string
}

func LoadSettings() Settings {
	s := Settings{
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))),
		DatabaseDSN:     strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		MaxRetries:      parsePositiveInt(os.Getenv("TX_MAX_RETRIES"), defaultMaxRetries),
		RefreshSchedule: strings.TrimSpace(os.Getenv("REFRESH_SCHEDULE")),
		Port:            strings.TrimSpace(os.Getenv("PORT")),
		AllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if s.DatabaseDriver == "" {
		s.DatabaseDriver = DriverPostgres
	}
	if s.DatabaseDSN == "" && s.DatabaseDriver == DriverSQLite {
		s.DatabaseDSN = "okr.db"
	}
	if s.RefreshSchedule == "" {
		s.RefreshSchedule = defaultRefreshSchedule
	}
	if s.Port == "" {
		s.Port = defaultPort
	}
	return s
}

func parsePositiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
