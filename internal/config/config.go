package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// TitleColumnLength 与 shift_templates.title 的 VARCHAR 长度一致
const TitleColumnLength = 100

const (
	DeletePolicyCascade  = "cascade"
	DeletePolicyRestrict = "restrict"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"30"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required,notEmpty"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天，仅用于种子脚本签发开发令牌
		Secret     string `env:"SECRET,required,notEmpty"`
	} `envPrefix:"JWT_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required,notEmpty"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	ShiftEvents struct {
		Queue string `env:"QUEUE" envDefault:"shift_assignment_events"`
	} `envPrefix:"SHIFT_EVENTS_"`
	Redis struct {
		Host           string `env:"HOST" envDefault:"localhost"`
		Port           int    `env:"PORT" envDefault:"6379"`
		Password       string `env:"PASSWORD"`
		DB             int    `env:"DB" envDefault:"0"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Scheduling struct {
		TitleMaxLength       int      `env:"TITLE_MAX_LENGTH" envDefault:"100"`
		AssignAllConcurrency int      `env:"ASSIGN_ALL_CONCURRENCY" envDefault:"8"`
		AssignAllLockTTL     int      `env:"ASSIGN_ALL_LOCK_TTL" envDefault:"120"`
		AssignAllExcluded    []string `env:"ASSIGN_ALL_EXCLUDED_ROLES" envDefault:"superadmin" envSeparator:","`
		TemplateDeletePolicy string   `env:"TEMPLATE_DELETE_POLICY" envDefault:"cascade"`
	} `envPrefix:"SCHEDULING_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	Notifier struct {
		Timezone string `env:"TIMEZONE" envDefault:"UTC"`
	} `envPrefix:"NOTIFIER_"`
	Seed struct {
		EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"example.com"`
	} `envPrefix:"SEED_"`
}

func LoadConfig() (*Config, error) {
	// 本地开发时从 .env 读取环境变量，文件不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if !slices.Contains([]string{DeletePolicyCascade, DeletePolicyRestrict}, cfg.Scheduling.TemplateDeletePolicy) {
		return fmt.Errorf("SCHEDULING_TEMPLATE_DELETE_POLICY 必须是 %s 或 %s", DeletePolicyCascade, DeletePolicyRestrict)
	}
	if cfg.Scheduling.AssignAllConcurrency <= 0 {
		return errors.New("SCHEDULING_ASSIGN_ALL_CONCURRENCY 必须大于 0")
	}
	if cfg.Scheduling.TitleMaxLength <= 0 || cfg.Scheduling.TitleMaxLength > TitleColumnLength {
		return fmt.Errorf("SCHEDULING_TITLE_MAX_LENGTH 必须在 1 到 %d 之间", TitleColumnLength)
	}

	return nil
}
