package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/akarpov/skycast/internal/location"
)

type AppConfig struct {
	OpenWeatherAPIKey  string `validate:"required"`
	OpenWeatherBaseURL string `validate:"required,url"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration

	// CacheDBPath is the SQLite preference store location.
	CacheDBPath string `validate:"required"`

	// RegionCode selects the display temperature unit.
	RegionCode string

	// Host coordinates, the device-location analog.
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`

	// Location collaborator settings.
	LocationEnabled bool
	LocationConsent string `validate:"oneof=granted denied permanently_denied"`
	FixTimeout      time.Duration

	// NetProbeAddr is dialed to check network reachability.
	NetProbeAddr string `validate:"required,hostname_port"`

	Port string
}

var validate = validator.New()

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")

	httpTimeout, err := getenvDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = httpTimeout

	cfg.CacheDBPath = getenvDefault("CACHE_DB_PATH", "skycast.db")
	cfg.RegionCode = os.Getenv("REGION_CODE")

	lat, err := getenvFloat("LOCATION_LAT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_LAT: %w", err)
	}
	cfg.Latitude = lat

	lon, err := getenvFloat("LOCATION_LON", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_LON: %w", err)
	}
	cfg.Longitude = lon

	cfg.LocationEnabled = getenvBool("LOCATION_ENABLED", true)
	cfg.LocationConsent = getenvDefault("LOCATION_CONSENT", "granted")

	fixTimeout, err := getenvDuration("LOCATION_FIX_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_FIX_TIMEOUT: %w", err)
	}
	cfg.FixTimeout = fixTimeout

	cfg.NetProbeAddr = getenvDefault("NET_PROBE_ADDR", "1.1.1.1:443")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Consent maps the configured consent string to the permission outcome the
// capability collaborator reports.
func (c *AppConfig) Consent() location.Permission {
	switch c.LocationConsent {
	case "denied":
		return location.PermissionDenied
	case "permanently_denied":
		return location.PermissionPermanentlyDenied
	default:
		return location.PermissionGranted
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	return time.ParseDuration(getenvDefault(key, def))
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
