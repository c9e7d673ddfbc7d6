package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Pipeline struct {
		Pair          string        `yaml:"pair"`
		TickInterval  time.Duration `yaml:"tick_interval"`
		TickBackoff   time.Duration `yaml:"tick_backoff"`
		Lookback      int           `yaml:"lookback"`
		Schema        string        `yaml:"schema"`
		WindowBars    int           `yaml:"window_bars"`
		SimulatorSeed int64         `yaml:"simulator_seed"`
	} `yaml:"pipeline"`
	Regime struct {
		ArtifactPath     string  `yaml:"artifact_path"`
		StableThreshold  float64 `yaml:"stable_threshold"`
		EntropyThreshold float64 `yaml:"entropy_threshold"`
	} `yaml:"regime"`
	Edge struct {
		ArtifactPath string `yaml:"artifact_path"`
		AllowMock    bool   `yaml:"allow_mock"`
		MockSeed     int64  `yaml:"mock_seed"`
		// Cost and MaxCVaR are pointers so an explicit 0 in the file is
		// distinguishable from an absent key.
		Cost         *float64 `yaml:"cost"`
		SafetyFactor float64  `yaml:"safety_factor"`
		MinWinProb   float64  `yaml:"min_win_prob"`
		MaxCVaR      *float64 `yaml:"max_cvar"`
	} `yaml:"edge"`
	Risk struct {
		InitialEquity float64 `yaml:"initial_equity"`
		VolTarget     float64 `yaml:"vol_target"`
		ThrottleSoft  float64 `yaml:"throttle_soft"`
		ThrottleHard  float64 `yaml:"throttle_hard"`
		SoftModifier  float64 `yaml:"soft_modifier"`
		HardModifier  float64 `yaml:"hard_modifier"`
	} `yaml:"risk"`
	Drift struct {
		Window         int      `yaml:"window"`
		AlertSamples   int      `yaml:"alert_samples"`
		ICReduce       float64  `yaml:"ic_reduce"`
		ICDecommission *float64 `yaml:"ic_decommission"`
		EntropySuspend float64  `yaml:"entropy_suspend"`
	} `yaml:"drift"`
	News struct {
		CalendarPath  string        `yaml:"calendar_path"`
		FetchURL      string        `yaml:"fetch_url"`
		FetchInterval time.Duration `yaml:"fetch_interval"`
		FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	} `yaml:"news"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TopicPrefix  string   `yaml:"topic_prefix"`
		BarsTopic    string   `yaml:"bars_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PAIR"); v != "" {
		c.Pipeline.Pair = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REGIME_ARTIFACT"); v != "" {
		c.Regime.ArtifactPath = v
	}
	if v := os.Getenv("EDGE_ARTIFACT"); v != "" {
		c.Edge.ArtifactPath = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Pipeline.Pair == "" {
		return fmt.Errorf("pipeline.pair is required")
	}
	if len(c.Pipeline.Pair) != 6 {
		return fmt.Errorf("pipeline.pair must be a 6-char instrument, got '%s'", c.Pipeline.Pair)
	}
	if c.Pipeline.Schema != "" && c.Pipeline.Schema != "legacy" && c.Pipeline.Schema != "nplr" {
		return fmt.Errorf("pipeline.schema must be 'legacy' or 'nplr', got '%s'", c.Pipeline.Schema)
	}
	if c.Edge.AllowMock && c.Environment == "production" {
		return fmt.Errorf("edge.allow_mock must not be set in production")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
