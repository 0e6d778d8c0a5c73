package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port       string
	AdminPort  string
	DBPath     string
	SeedFile   string
	GalleryDir string

	RateLimitRPS   float64
	RateLimitBurst int
	GinMode        string

	// Hex SHA-256 digests of the role passwords. Login is disabled for a
	// role whose hash is empty.
	GuestPasswordHash string
	AdminPasswordHash string
	AuthSecret        string

	SMSAccountSID string
	SMSAuthToken  string
	SMSFromNumber string
	SMSBaseURL    string

	SiteName string
	SiteURL  string

	WeatherLat float64
	WeatherLon float64
}

func Load() *Config {
	return &Config{
		Port:       envOrDefault("PORT", "8080"),
		AdminPort:  envOrDefault("ADMIN_PORT", "9090"),
		DBPath:     envOrDefault("DB_PATH", "/data/events.db"),
		SeedFile:   os.Getenv("SEED_FILE"),
		GalleryDir: envOrDefault("GALLERY_DIR", "/data/gallery"),

		RateLimitRPS:   envOrDefaultFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: envOrDefaultInt("RATE_LIMIT_BURST", 10),
		GinMode:        envOrDefault("GIN_MODE", "release"),

		GuestPasswordHash: os.Getenv("GUEST_PASSWORD_HASH"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),

		SMSAccountSID: os.Getenv("SMS_ACCOUNT_SID"),
		SMSAuthToken:  os.Getenv("SMS_AUTH_TOKEN"),
		SMSFromNumber: os.Getenv("SMS_FROM_NUMBER"),
		SMSBaseURL:    os.Getenv("SMS_BASE_URL"),

		SiteName: envOrDefault("SITE_NAME", "Pine Grove Gatherings"),
		SiteURL:  envOrDefault("SITE_URL", "https://example.com"),

		WeatherLat: envOrDefaultFloat("WEATHER_LAT", 45.4215),
		WeatherLon: envOrDefaultFloat("WEATHER_LON", -75.6972),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
