package config

import (
	"fmt"
	"os"
	"strconv"
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
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
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
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
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
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MarketData struct {
		APIKey          string        `yaml:"api_key"`
		WebSocketURL    string        `yaml:"websocket_url"`
		RESTURL         string        `yaml:"rest_url"`
		Symbols         []string      `yaml:"symbols"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		HistoryLookback time.Duration `yaml:"history_lookback"`
		HistoryTimeout  time.Duration `yaml:"history_timeout"`
	} `yaml:"marketdata"`
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`
	Forecast struct {
		Ensemble         bool `yaml:"ensemble"`
		WeightWindowDays int  `yaml:"weight_window_days"`
		WeightSmoothing  int  `yaml:"weight_smoothing"`
		MinRetrainPoints int  `yaml:"min_retrain_points"`
		Sequence         struct {
			Lookback        int     `yaml:"lookback"`
			HiddenUnits     int     `yaml:"hidden_units"`
			TrainEpochs     int     `yaml:"train_epochs"`
			RetrainEpochs   int     `yaml:"retrain_epochs"`
			FineTuneEpochs  int     `yaml:"fine_tune_epochs"`
			ValidationSplit float64 `yaml:"validation_split"`
		} `yaml:"sequence"`
		Retrain struct {
			IntervalDays int     `yaml:"interval_days"`
			RMSESlope    float64 `yaml:"rmse_slope"`
			BiasSlope    float64 `yaml:"bias_slope"`
			LookbackDays int     `yaml:"lookback_days"`
			MinRecords   int     `yaml:"min_records"`
		} `yaml:"retrain"`
		Alerts struct {
			RMSE float64 `yaml:"rmse"`
			MAPE float64 `yaml:"mape"`
			Bias float64 `yaml:"bias"`
		} `yaml:"alerts"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"forecast"`
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
	c.applyDefaults()

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

	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKETDATA_REST_URL"); v != "" {
		c.MarketData.RESTURL = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := envInt("RETRAIN_INTERVAL_DAYS"); v != nil {
		c.Forecast.Retrain.IntervalDays = *v
	}
	if v := envFloat("RETRAIN_RMSE_SLOPE"); v != nil {
		c.Forecast.Retrain.RMSESlope = *v
	}
	if v := envFloat("RETRAIN_BIAS_SLOPE"); v != nil {
		c.Forecast.Retrain.BiasSlope = *v
	}
	if v := envInt("RETRAIN_LOOKBACK_DAYS"); v != nil {
		c.Forecast.Retrain.LookbackDays = *v
	}
	if v := envFloat("ALERT_RMSE"); v != nil {
		c.Forecast.Alerts.RMSE = *v
	}
	if v := envFloat("ALERT_MAPE"); v != nil {
		c.Forecast.Alerts.MAPE = *v
	}
	if v := envFloat("ALERT_BIAS"); v != nil {
		c.Forecast.Alerts.Bias = *v
	}
	if v := envInt("SEQUENCE_LOOKBACK"); v != nil {
		c.Forecast.Sequence.Lookback = *v
	}
	return c, nil
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func (c *Config) applyDefaults() {
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "data/artifacts"
	}
	if c.MarketData.HistoryLookback == 0 {
		c.MarketData.HistoryLookback = 30 * 24 * time.Hour
	}
	if c.MarketData.HistoryTimeout == 0 {
		c.MarketData.HistoryTimeout = 15 * time.Second
	}
	f := &c.Forecast
	if f.WeightWindowDays == 0 {
		f.WeightWindowDays = 7
	}
	if f.WeightSmoothing == 0 {
		f.WeightSmoothing = 1
	}
	if f.MinRetrainPoints == 0 {
		f.MinRetrainPoints = 50
	}
	if f.Sequence.Lookback == 0 {
		f.Sequence.Lookback = 24
	}
	if f.Sequence.HiddenUnits == 0 {
		f.Sequence.HiddenUnits = 50
	}
	if f.Sequence.TrainEpochs == 0 {
		f.Sequence.TrainEpochs = 10
	}
	if f.Sequence.RetrainEpochs == 0 {
		f.Sequence.RetrainEpochs = 20
	}
	if f.Sequence.FineTuneEpochs == 0 {
		f.Sequence.FineTuneEpochs = 5
	}
	if f.Sequence.ValidationSplit == 0 {
		f.Sequence.ValidationSplit = 0.2
	}
	if f.Retrain.IntervalDays == 0 {
		f.Retrain.IntervalDays = 7
	}
	if f.Retrain.RMSESlope == 0 {
		f.Retrain.RMSESlope = 0.1
	}
	if f.Retrain.BiasSlope == 0 {
		f.Retrain.BiasSlope = 0.05
	}
	if f.Retrain.LookbackDays == 0 {
		f.Retrain.LookbackDays = 30
	}
	if f.Retrain.MinRecords == 0 {
		f.Retrain.MinRecords = 10
	}
	if f.Alerts.RMSE == 0 {
		f.Alerts.RMSE = 10.0
	}
	if f.Alerts.MAPE == 0 {
		f.Alerts.MAPE = 15.0
	}
	if f.Alerts.Bias == 0 {
		f.Alerts.Bias = 5.0
	}
	if f.SweepInterval == 0 {
		f.SweepInterval = time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("marketdata.symbols cannot be empty")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}
