package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB        DBConfig
	JWT       JWTConfig
	Server    ServerConfig
	Google    GoogleConfig
	Superuser SuperuserConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret        string
	AccessMinutes int
	RefreshHours  int
}

type ServerConfig struct {
	Port string
}

type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	VerifyTimeout time.Duration
}

// SuperuserConfig seeds a privileged account at startup. Seeding is skipped
// unless both email and password are set.
type SuperuserConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "schedulesync"),
			Password: getEnv("DB_PASSWORD", "schedulesync_secret"),
			Name:     getEnv("DB_NAME", "schedulesync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			AccessMinutes: getEnvAsInt("JWT_ACCESS_MINUTES", 30),
			RefreshHours:  getEnvAsInt("JWT_REFRESH_HOURS", 24*7),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Google: GoogleConfig{
			ClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:   getEnv("GOOGLE_REDIRECT_URL", ""),
			VerifyTimeout: getEnvAsDuration("GOOGLE_VERIFY_TIMEOUT", 10*time.Second),
		},
		Superuser: SuperuserConfig{
			Email:     getEnv("SUPERUSER_EMAIL", ""),
			Password:  getEnv("SUPERUSER_PASSWORD", ""),
			FirstName: getEnv("SUPERUSER_FIRST_NAME", "System"),
			LastName:  getEnv("SUPERUSER_LAST_NAME", "Admin"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
