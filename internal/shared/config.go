package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	HostawayBase string
	HostawayKey  string
	GoogleBase   string
	GoogleKey    string

	OverlayPath string

	SyncWorkers      int
	GeocodeBatchSize int
	GeocodeDelay     time.Duration
	GeocodeCron      string // empty = run once and exit

	CacheTTL time.Duration
}

func Load() Config {
	// Optional .env for local runs; env vars win.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviewdash?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		HostawayBase: env("HOSTAWAY_BASE_URL", "https://api.hostaway.com/v1"),
		HostawayKey:  env("HOSTAWAY_API_KEY", ""),
		GoogleBase:   env("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
		GoogleKey:    env("GOOGLE_MAPS_API_KEY", ""),

		// empty = overlay disabled; decisions live only in the store
		OverlayPath: env("OVERLAY_PATH", ""),

		SyncWorkers:      atoi("SYNC_WORKERS", 8),
		GeocodeBatchSize: atoi("GEOCODE_BATCH_SIZE", 5),
		GeocodeDelay:     time.Duration(atoi("GEOCODE_DELAY_MS", 1000)) * time.Millisecond,
		GeocodeCron:      env("GEOCODE_CRON", ""),

		CacheTTL: time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.HostawayKey == "" {
		log.Warn().Msg("HOSTAWAY_API_KEY is empty")
	}
	if c.GoogleKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty; google sync and geocoding will fail")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
