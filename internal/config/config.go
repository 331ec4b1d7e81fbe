package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port   string
	DBPath string

	// Sensor aggregation endpoint (indoor loop).
	SensorAPIURL string
	SensorAPIKey string

	// Outdoor sources (pollutants + weather).
	AirQualityAPIURL string
	WeatherAPIURL    string

	// Remote inference/agent service.
	InferenceAPIBase string

	// Ingestion cadences. Policy, not mechanism: the loops are independent.
	NodeFetchInterval    time.Duration
	OutdoorFetchInterval time.Duration

	// SchedulerTimezone aligns ingestion ticks; stored timestamps are
	// normalized separately.
	SchedulerTimezone string

	// Timeout budget for one inference call.
	InferenceTimeout time.Duration

	// Shared outbound HTTP client timeout.
	HTTPTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		DBPath:            getenvDefault("DB_PATH", "data/indoor-comfort.db"),
		SensorAPIURL:      os.Getenv("SENSOR_API_URL"),
		SensorAPIKey:      os.Getenv("SENSOR_API_KEY"),
		AirQualityAPIURL:  os.Getenv("AIR_QUALITY_API_URL"),
		WeatherAPIURL:     os.Getenv("WEATHER_API_URL"),
		InferenceAPIBase:  os.Getenv("INFERENCE_API_BASE"),
		SchedulerTimezone: getenvDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata"),
	}

	var err error
	if cfg.NodeFetchInterval, err = getenvDuration("NODE_FETCH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.OutdoorFetchInterval, err = getenvDuration("OUTDOOR_FETCH_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.InferenceTimeout, err = getenvDuration("INFERENCE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SchedulerLocation resolves the configured timezone, falling back to the
// fixed UTC+5:30 offset when tzdata is unavailable.
func (c *AppConfig) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		log.Printf("INFO: cannot load timezone %q, using fixed UTC+5:30: %v", c.SchedulerTimezone, err)
		return time.FixedZone("UTC+5:30", 5*3600+30*60)
	}
	return loc
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
