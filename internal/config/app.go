package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPServer struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
}

// DbServer configures the snapshot archive. An empty host disables it.
type DbServer struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port" validate:"required_with=Host"`
	User     string `mapstructure:"user" validate:"required_with=Host"`
	Pass     string `mapstructure:"pass"`
	Name     string `mapstructure:"name" validate:"required_with=Host"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

func (config *DbServer) Enabled() bool { return config.Host != "" }

func (config *DbServer) GetConnectionStr() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable pool_max_conns=10",
		config.User, config.Pass, config.Host, config.Port, config.Name,
	)
}

// Redis configures the message bus. An empty addr disables it.
type Redis struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db" validate:"gte=0"`
	RequestStream     string `mapstructure:"request_stream" validate:"required_with=Addr"`
	ConsumerGroup     string `mapstructure:"consumer_group" validate:"required_with=Addr"`
	ConsumerName      string `mapstructure:"consumer_name" validate:"required_with=Addr"`
	ResultChannel     string `mapstructure:"result_channel" validate:"required_with=Addr"`
	RateChangeChannel string `mapstructure:"rate_change_channel"`
}

func (r *Redis) Enabled() bool { return r.Addr != "" }

type HTTPClient struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gt=0"`
}

type ExchangeRateAPI struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key"`
}

const (
	SourceAPI  = "api"
	SourceFile = "file"
)

type Importer struct {
	Source         string `mapstructure:"source" validate:"oneof=api file"`
	FilePath       string `mapstructure:"file_path" validate:"required_if=Source file"`
	JobDurationSec int    `mapstructure:"job_duration_sec" validate:"gt=0"`
}

func (i *Importer) Interval() time.Duration {
	return time.Duration(i.JobDurationSec) * time.Second
}

type Conversion struct {
	PivotCurrency    string `mapstructure:"pivot_currency" validate:"required,len=3,alpha"`
	Precision        int32  `mapstructure:"precision" validate:"gte=0,lte=18"`
	Workers          int    `mapstructure:"workers" validate:"gt=0"`
	QueueCapacity    int    `mapstructure:"queue_capacity" validate:"gt=0"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms" validate:"gte=0"`
	DedupWindow      int64  `mapstructure:"dedup_window" validate:"gt=0"`
	DedupTTLSec      int    `mapstructure:"dedup_ttl_sec" validate:"gte=0"`
}

func (c *Conversion) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Conversion) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSec) * time.Second
}

type Logging struct {
	Level string `mapstructure:"level"`
}

type AppConfig struct {
	HTTPServer      HTTPServer      `mapstructure:"http_server"`
	DbServer        DbServer        `mapstructure:"db_server"`
	Redis           Redis           `mapstructure:"redis"`
	HTTPClient      HTTPClient      `mapstructure:"http_client"`
	ExchangeRateAPI ExchangeRateAPI `mapstructure:"exchange_rate_api"`
	Importer        Importer        `mapstructure:"importer"`
	Conversion      Conversion      `mapstructure:"conversion"`
	Logging         Logging         `mapstructure:"logging"`
}

// FeedURL is the rate endpoint with the api key in its path, as exchangerate-api expects.
func (config *AppConfig) FeedURL() string {
	if config.ExchangeRateAPI.APIKey == "" {
		return config.ExchangeRateAPI.BaseURL
	}
	return fmt.Sprintf("%s/%s/latest", config.ExchangeRateAPI.BaseURL, config.ExchangeRateAPI.APIKey)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_server.port", "8080")
	v.SetDefault("db_server.max_conns", 10)
	v.SetDefault("http_client.timeout_seconds", 10)
	v.SetDefault("exchange_rate_api.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("importer.source", SourceAPI)
	v.SetDefault("importer.job_duration_sec", 30)
	v.SetDefault("conversion.pivot_currency", "USD")
	v.SetDefault("conversion.precision", 2)
	v.SetDefault("conversion.workers", 4)
	v.SetDefault("conversion.queue_capacity", 256)
	v.SetDefault("conversion.request_timeout_ms", 2000)
	v.SetDefault("conversion.dedup_window", 10000)
	v.SetDefault("conversion.dedup_ttl_sec", 600)
	v.SetDefault("redis.request_stream", "fx:requests")
	v.SetDefault("redis.consumer_group", "fxcalc")
	v.SetDefault("redis.consumer_name", "fxcalc-1")
	v.SetDefault("redis.result_channel", "fx:results")
	v.SetDefault("redis.rate_change_channel", "fx:rate-changes")
	v.SetDefault("logging.level", "info")
}

func bindEnv(v *viper.Viper) {
	// db server env vars
	_ = v.BindEnv("db_server.host", "DB_HOST")
	_ = v.BindEnv("db_server.port", "DB_PORT")
	_ = v.BindEnv("db_server.user", "DB_USER")
	_ = v.BindEnv("db_server.pass", "DB_PASS")
	_ = v.BindEnv("db_server.name", "DB_NAME")
	_ = v.BindEnv("db_server.max_conns", "DB_MAX_CONNS")

	// redis env vars
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	// http client env vars
	_ = v.BindEnv("http_client.timeout_seconds", "HTTP_CLIENT_TIMEOUT_SECONDS")

	// rates feed env vars
	_ = v.BindEnv("exchange_rate_api.base_url", "EXCHANGE_RATE_API_URL")
	_ = v.BindEnv("exchange_rate_api.api_key", "EXCHANGE_RATE_API_KEY")
	_ = v.BindEnv("importer.source", "IMPORTER_SOURCE")
	_ = v.BindEnv("importer.file_path", "IMPORTER_FILE_PATH")

	_ = v.BindEnv("conversion.pivot_currency", "PIVOT_CURRENCY")
	_ = v.BindEnv("conversion.workers", "CONVERSION_WORKERS")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
}

// Init loads .env (optional), config.yaml (optional) and env overrides, then validates.
func Init() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile("config.yaml")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (*AppConfig, error) {
	setDefaults(v)
	bindEnv(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
