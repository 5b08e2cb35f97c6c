package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"60"` // 生成计划可能比较慢
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Secret string `env:"SECRET,required"` // 令牌由工厂的统一认证签发，这里只做校验
	} `envPrefix:"JWT_"`
	Email struct {
		Recipients []string `env:"RECIPIENTS,required" envSeparator:","` // 接收延期预警的计划员
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"plan_events"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host              string `env:"HOST" envDefault:"localhost"`
		Port              int    `env:"PORT" envDefault:"6379"`
		Password          string `env:"PASSWORD,required"`
		ConnectTimeout    int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout  int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
		PreviewExpiration int    `env:"PREVIEW_EXPIRATION" envDefault:"3600"` // 预览计划保留 1 小时
		LockExpiration    int    `env:"LOCK_EXPIRATION" envDefault:"120"`
	} `envPrefix:"REDIS_"`
	Plant struct {
		ConfigPath string `env:"CONFIG_PATH" envDefault:"configs/plant.yaml"`
	} `envPrefix:"PLANT_"`
	Planner struct {
		HighVolumeQuantity      int `env:"HIGH_VOLUME_QUANTITY" envDefault:"3000"`
		HighCavityCount         int `env:"HIGH_CAVITY_COUNT" envDefault:"4"`
		ColorClusterWindowHours int `env:"COLOR_CLUSTER_WINDOW_HOURS" envDefault:"24"`
		SoftLockPriority        int `env:"SOFT_LOCK_PRIORITY" envDefault:"1000"`
		RunTimeout              int `env:"RUN_TIMEOUT" envDefault:"45"`
	} `envPrefix:"PLANNER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
