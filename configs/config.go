package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// GRPCTarget describes one outbound gRPC dependency.
type GRPCTarget struct {
	Target       string        `koanf:"target"`
	UseTLS       bool          `koanf:"use_tls"`
	CACertPath   string        `koanf:"ca_cert_path"`
	ServerName   string        `koanf:"server_name"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxRecvBytes int           `koanf:"max_recv_bytes"`
	MaxSendBytes int           `koanf:"max_send_bytes"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
		Sandbox  bool   `koanf:"sandbox"` // exposes /_sandbox routes
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Storage struct {
		Driver string `koanf:"driver"` // mysql | memory
	} `koanf:"storage"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		Migrate         bool          `koanf:"migrate"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
		Prefetch   int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		GroupID       string   `koanf:"group_id"`
		TopicPayments string   `koanf:"topic_payments"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Money struct {
		Currency string `koanf:"currency"`
	} `koanf:"money"`

	Tax struct {
		Rate        string `koanf:"rate"`         // decimal fraction, e.g. "0.05"
		InvoiceMode string `koanf:"invoice_mode"` // combined | cgst_sgst | igst
	} `koanf:"tax"`

	Payments struct {
		IntentTTL     time.Duration `koanf:"intent_ttl"`
		SweepInterval time.Duration `koanf:"sweep_interval"`
	} `koanf:"payments"`

	PaymentGateway struct {
		Mode          string     `koanf:"mode"` // grpc | sandbox
		KeyID         string     `koanf:"key_id"`
		KeySecretB64  string     `koanf:"key_secret_b64url"`
		WebhookPubPEM string     `koanf:"webhook_pub_pem"`
		WebhookPriPEM string     `koanf:"webhook_pri_pem"`
		GRPC          GRPCTarget `koanf:"grpc"`
	} `koanf:"payment_gateway"`

	Notifier struct {
		GRPC GRPCTarget `koanf:"grpc"` // empty target => log-only notifier
	} `koanf:"notifier"`

	Dispatcher struct {
		Workers     int `koanf:"workers"`
		QueueSize   int `koanf:"queue_size"`
		MaxAttempts int `koanf:"max_attempts"`
	} `koanf:"dispatcher"`
}

func Load(pathDir, envName string) (Config, error) {
	// 0) local .env, if present, feeds the env overlay below
	_ = godotenv.Load()

	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix ORDERAPI_, nested with __)
	// e.g. ORDERAPI_MYSQL__DSN, ORDERAPI_PAYMENT_GATEWAY__KEY_SECRET_B64URL
	if err := k.Load(env.Provider("ORDERAPI_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ORDERAPI_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	switch c.Storage.Driver {
	case "mysql":
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql.dsn required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want mysql or memory", c.Storage.Driver))
	}
	if c.Money.Currency == "" {
		errs = append(errs, errors.New("money.currency required"))
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwt_secret required"))
	}
	switch c.PaymentGateway.Mode {
	case "grpc":
		if c.PaymentGateway.GRPC.Target == "" {
			errs = append(errs, errors.New("payment_gateway.grpc.target required"))
		}
	case "sandbox":
	default:
		errs = append(errs, fmt.Errorf("payment_gateway.mode %q: want grpc or sandbox", c.PaymentGateway.Mode))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicPayments == "" {
		errs = append(errs, errors.New("kafka.topic_payments required when brokers are set"))
	}
	return errors.Join(errs...)
}
