package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`

	// RedisHost empty disables the shared stats cache.
	RedisHost string `mapstructure:"REDIS_HOST"`
	RedisPort string `mapstructure:"REDIS_PORT"`

	ServerPort string `mapstructure:"SERVER_PORT"`

	// MinTileZoom is the zoom below which tile requests short-circuit to an
	// empty tile without touching the store. A low-zoom tile covers far too
	// many buildings to query or render usefully.
	MinTileZoom int `mapstructure:"MIN_TILE_ZOOM"`

	// TileCacheMaxAge is the max-age (seconds) advertised on tile responses.
	TileCacheMaxAge int `mapstructure:"TILE_CACHE_MAX_AGE"`

	// Rounding granularity for the stats memoization key: position bounds are
	// rounded to StatsBoundsPrecision decimal degrees and zoom to
	// StatsZoomPrecision decimals, so sub-granularity pans never trigger a
	// recompute.
	StatsBoundsPrecision int `mapstructure:"STATS_BOUNDS_PRECISION"`
	StatsZoomPrecision   int `mapstructure:"STATS_ZOOM_PRECISION"`

	StatsPollIntervalMs int `mapstructure:"STATS_POLL_INTERVAL_MS"`
	QueryTimeoutMs      int `mapstructure:"QUERY_TIMEOUT_MS"`

	// Initial viewport for the embedded viewer page.
	MapCenterLng string `mapstructure:"MAP_CENTER_LNG"`
	MapCenterLat string `mapstructure:"MAP_CENTER_LAT"`
	MapZoom      string `mapstructure:"MAP_ZOOM"`
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB,
	)
}

func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

func (c *Config) StatsPollInterval() time.Duration {
	return time.Duration(c.StatsPollIntervalMs) * time.Millisecond
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Explicitly bind environment variables
	viper.BindEnv("POSTGRES_USER")
	viper.BindEnv("POSTGRES_PASSWORD")
	viper.BindEnv("POSTGRES_DB")
	viper.BindEnv("POSTGRES_HOST")
	viper.BindEnv("POSTGRES_PORT")
	viper.BindEnv("REDIS_HOST")
	viper.BindEnv("REDIS_PORT")
	viper.BindEnv("SERVER_PORT")
	viper.BindEnv("MIN_TILE_ZOOM")
	viper.BindEnv("TILE_CACHE_MAX_AGE")
	viper.BindEnv("STATS_BOUNDS_PRECISION")
	viper.BindEnv("STATS_ZOOM_PRECISION")
	viper.BindEnv("STATS_POLL_INTERVAL_MS")
	viper.BindEnv("QUERY_TIMEOUT_MS")
	viper.BindEnv("MAP_CENTER_LNG")
	viper.BindEnv("MAP_CENTER_LAT")
	viper.BindEnv("MAP_ZOOM")

	// Defaults. The zoom threshold and rounding granularities were tuned
	// against the Netherlands buildings dataset, not derived; both stay
	// configurable for that reason.
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_DB", "buildings")
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MIN_TILE_ZOOM", 10)
	viper.SetDefault("TILE_CACHE_MAX_AGE", 3600)
	viper.SetDefault("STATS_BOUNDS_PRECISION", 4)
	viper.SetDefault("STATS_ZOOM_PRECISION", 1)
	viper.SetDefault("STATS_POLL_INTERVAL_MS", 1500)
	viper.SetDefault("QUERY_TIMEOUT_MS", 5000)
	viper.SetDefault("MAP_CENTER_LNG", "5.12")
	viper.SetDefault("MAP_CENTER_LAT", "52.09")
	viper.SetDefault("MAP_ZOOM", "15")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: no .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatalf("Failed to unmarshal config: %v", err)
	}

	return cfg
}
