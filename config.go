package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	SourceSim     = "sim"
	SourceWS      = "ws"
	SourceKafka   = "kafka"
	SourceMassive = "massive"
)

// CLIConfig is read from the environment first; flags override.
type CLIConfig struct {
	Port     int    `env:"PORT" envDefault:"8093"`
	Universe string `env:"UNIVERSE" envDefault:"./universe.yaml"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Source      string        `env:"FEED_SOURCE" envDefault:"sim"`
	FeedURL     string        `env:"FEED_URL"`
	FillMissing bool          `env:"FILL_MISSING" envDefault:"true"`
	SimInterval time.Duration `env:"SIM_INTERVAL" envDefault:"2s"`
	SimSeed     int64         `env:"SIM_SEED" envDefault:"42"`
	SimReseed   bool          `env:"SIM_RESEED" envDefault:"false"`

	Refresh    time.Duration `env:"REFRESH_INTERVAL" envDefault:"2s"`
	RSIMax     float64       `env:"RSI_MAX" envDefault:"35"`
	MinVolume  int64         `env:"MIN_VOLUME" envDefault:"300000"`
	ChartField string        `env:"CHART_FIELD" envDefault:"rsi"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"psx_quotes"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"psxscreener"`

	MassiveAPIKey string `env:"MASSIVE_API_KEY"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"1m"`
}

// LoadConfig parses env into defaults, then lets args override them.
func LoadConfig(args []string) (CLIConfig, error) {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("psxscreener", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.Universe, "universe", cfg.Universe, "Path to universe.yaml (defaults used when missing)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")

	fs.StringVar(&cfg.Source, "source", cfg.Source, "Feed source: sim|ws|kafka|massive")
	fs.StringVar(&cfg.FeedURL, "feed-url", cfg.FeedURL, "Websocket feed URL (ws source) or feed override (massive)")
	fs.BoolVar(&cfg.FillMissing, "fill-missing", cfg.FillMissing, "Fill metrics a live update lacks with placeholder values")
	fs.DurationVar(&cfg.SimInterval, "sim-interval", cfg.SimInterval, "Synthetic batch cadence")
	fs.Int64Var(&cfg.SimSeed, "sim-seed", cfg.SimSeed, "Synthetic generator seed")
	fs.BoolVar(&cfg.SimReseed, "sim-reseed", cfg.SimReseed, "Reseed before every batch (identical batches)")

	fs.DurationVar(&cfg.Refresh, "refresh", cfg.Refresh, "Screener refresh cadence")
	fs.Float64Var(&cfg.RSIMax, "rsi-max", cfg.RSIMax, "Initial max RSI for the trading screen (10..70)")
	fs.Int64Var(&cfg.MinVolume, "min-volume", cfg.MinVolume, "Initial min volume for the trading screen")
	fs.StringVar(&cfg.ChartField, "chart-field", cfg.ChartField, "Field charted across all instruments")

	brokers := strings.Join(cfg.KafkaBrokers, ",")
	fs.StringVar(&brokers, "kafka-brokers", brokers, "Comma separated Kafka brokers")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic carrying update payloads")
	fs.StringVar(&cfg.KafkaGroupID, "kafka-group", cfg.KafkaGroupID, "Kafka consumer group")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for view fan-out (empty disables)")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", cfg.RedisTTL, "TTL of the latest view key in Redis")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.KafkaBrokers = splitCSV(brokers)
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))

	return cfg, cfg.validate()
}

func (c CLIConfig) validate() error {
	switch c.Source {
	case SourceSim:
	case SourceWS:
		if c.FeedURL == "" {
			return fmt.Errorf("source=ws requires FEED_URL / -feed-url")
		}
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("source=kafka requires brokers and topic")
		}
	case SourceMassive:
		if c.MassiveAPIKey == "" {
			return fmt.Errorf("source=massive requires MASSIVE_API_KEY")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if _, err := ParseField(c.ChartField); err != nil {
		return fmt.Errorf("chart field: %w", err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("bad port %d", c.Port)
	}
	return nil
}

func splitCSV(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
