// Package config loads environment variables and the optional config
// file into typed config structs for the coordinator and workers.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type (
	AppConfig struct {
		App       *App       `mapstructure:"app"`
		Redis     *Redis     `mapstructure:"redis"`
		Logger    *Logger    `mapstructure:"logger"`
		DB        *DB        `mapstructure:"db"`
		Scheduler *Scheduler `mapstructure:"scheduler"`
	}

	// App contains the service identity and listen ports.
	App struct {
		Name     string `mapstructure:"name"`
		Env      string `mapstructure:"env"`
		HTTPPort int    `mapstructure:"httpPort"`
		GRPCPort int    `mapstructure:"grpcPort"` // reserved, parsed but not served
	}

	// Redis contains the connection variables for the store.
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	}

	// DB contains the connection variables for the job archive database.
	// An empty host disables archiving.
	DB struct {
		Connection string `mapstructure:"connection"`
		Host       string `mapstructure:"host"`
		Port       string `mapstructure:"port"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
	}

	// Scheduler contains the coordination timing knobs.
	Scheduler struct {
		WorkerTimeoutSeconds         int `mapstructure:"workerTimeoutSeconds"`
		HeartbeatCheckSeconds        int `mapstructure:"heartbeatCheckSeconds"`
		JobProcessingIntervalSeconds int `mapstructure:"jobProcessingIntervalSeconds"`
		MaxTaskAttempts              int `mapstructure:"maxTaskAttempts"`
		ResultTTLSeconds             int `mapstructure:"resultTtlSeconds"`
		RetentionIntervalSeconds     int `mapstructure:"retentionIntervalSeconds"`
		DefaultFanout                int `mapstructure:"defaultFanout"`
	}

	// Logger contains the environment variables for the logger.
	Logger struct {
		Level             string                `mapstructure:"level"`
		Development       bool                  `mapstructure:"development"`
		DisableStacktrace bool                  `mapstructure:"disableStacktrace"`
		Encoding          string                `mapstructure:"encoding"`
		EncoderConfig     zapcore.EncoderConfig `mapstructure:"encoderConfig"`
	}
)

// Addr returns host:port for the store connection.
func (r *Redis) Addr() string {
	return r.Host + ":" + r.Port
}

// Enabled reports whether the archive database is configured.
func (d *DB) Enabled() bool {
	return d != nil && d.Host != ""
}

func (s *Scheduler) WorkerTimeout() time.Duration {
	return time.Duration(s.WorkerTimeoutSeconds) * time.Second
}

func (s *Scheduler) HeartbeatCheckInterval() time.Duration {
	return time.Duration(s.HeartbeatCheckSeconds) * time.Second
}

func (s *Scheduler) JobProcessingInterval() time.Duration {
	return time.Duration(s.JobProcessingIntervalSeconds) * time.Second
}

func (s *Scheduler) ResultTTL() time.Duration {
	return time.Duration(s.ResultTTLSeconds) * time.Second
}

func (s *Scheduler) RetentionInterval() time.Duration {
	return time.Duration(s.RetentionIntervalSeconds) * time.Second
}

// addZapEncoderConfig fills in the function-typed encoder fields viper
// cannot unmarshal from the config file.
func addZapEncoderConfig(cfg *zapcore.EncoderConfig) {
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.EncodeName = zapcore.FullNameEncoder
}

func setDefaults() {
	viper.SetDefault("app.name", "daf")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.httpPort", 8080)
	viper.SetDefault("app.grpcPort", 50051)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")

	viper.SetDefault("db.connection", "postgres")
	viper.SetDefault("db.port", "5432")

	viper.SetDefault("scheduler.workerTimeoutSeconds", 300)
	viper.SetDefault("scheduler.heartbeatCheckSeconds", 30)
	viper.SetDefault("scheduler.jobProcessingIntervalSeconds", 2)
	viper.SetDefault("scheduler.maxTaskAttempts", 3)
	viper.SetDefault("scheduler.resultTtlSeconds", 3600)
	viper.SetDefault("scheduler.retentionIntervalSeconds", 3600)
	viper.SetDefault("scheduler.defaultFanout", 5)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("logger.encoderConfig.messageKey", "msg")
	viper.SetDefault("logger.encoderConfig.levelKey", "level")
	viper.SetDefault("logger.encoderConfig.timeKey", "ts")
	viper.SetDefault("logger.encoderConfig.callerKey", "caller")
}

func bindEnv() {
	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.httpPort", "HTTP_PORT")
	viper.BindEnv("app.grpcPort", "GRPC_PORT")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	viper.BindEnv("db.host", "PG_HOST")
	viper.BindEnv("db.port", "PG_PORT")
	viper.BindEnv("db.user", "PG_USER")
	viper.BindEnv("db.password", "PG_PASS")
	viper.BindEnv("db.name", "PG_DB")

	viper.BindEnv("scheduler.workerTimeoutSeconds", "WORKER_TIMEOUT_SECONDS")
	viper.BindEnv("scheduler.heartbeatCheckSeconds", "HEARTBEAT_CHECK_SECONDS")
	viper.BindEnv("scheduler.jobProcessingIntervalSeconds", "JOB_PROCESSING_INTERVAL_SECONDS")
	viper.BindEnv("scheduler.maxTaskAttempts", "MAX_TASK_ATTEMPTS")
	viper.BindEnv("scheduler.resultTtlSeconds", "RESULT_TTL_SECONDS")

	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// New creates a new AppConfig instance. The config file is optional;
// environment variables and defaults cover a bare deployment.
func New() *AppConfig {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/daf/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("error reading config file: %v", err)
		}
	}

	var config *AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to decode into struct: %v", err)
	}
	addZapEncoderConfig(&config.Logger.EncoderConfig)

	return config
}
