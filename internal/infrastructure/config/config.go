package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Feed      FeedConfig
	Simulator SimulatorConfig
	Animation AnimationConfig
	Mongo     MongoConfig
	Redis     RedisConfig
}

// FeedConfig configures the upstream driver-location websocket feed.
// An empty URL means no live feed; the simulator then supplies motion.
type FeedConfig struct {
	URL           string        `env:"FEED_URL"`
	RetryInterval time.Duration `env:"FEED_RETRY_INTERVAL, default=5s"`
	MaxRetries    int           `env:"FEED_MAX_RETRIES,    default=5"`
}

// SimulatorConfig configures the demo motion generator.
type SimulatorConfig struct {
	Enabled  bool          `env:"SIM_ENABLED,   default=true"`
	Interval time.Duration `env:"SIM_INTERVAL,  default=3s"`
	MaxDelta float64       `env:"SIM_MAX_DELTA, default=0.0005"`
}

// AnimationConfig configures marker interpolation.
type AnimationConfig struct {
	Duration      time.Duration `env:"ANIMATION_DURATION,       default=3s"`
	FrameInterval time.Duration `env:"ANIMATION_FRAME_INTERVAL, default=16ms"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=fleet_dashboard"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
