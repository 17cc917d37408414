package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

type Config struct {
	Address       string        `yaml:"address" env:"ADDRESS" env-default:":50051"`
	HealthAddress string        `yaml:"health_address" env:"HEALTH_ADDRESS" env-default:":8081"`
	LogLevel      string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Params        Params        `yaml:"params"`
	JWT           JWT           `yaml:"jwt"`
	DB            DB            `yaml:"db"`
	Redis         Redis         `yaml:"redis"`
	RateLimiter   RateLimiter   `yaml:"rate_limiter"`
	Kafka         Kafka         `yaml:"kafka"`
	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
	DocStore      DocStore      `yaml:"docstore"`
}

type Params struct {
	Text        MinMaxLen `yaml:"text"`
	DisplayName MinMaxLen `yaml:"display_name"`
	Password    MinMaxLen `yaml:"password"`
}

type MinMaxLen struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type JWT struct {
	Secret     string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"72h"`
}

type DB struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"db_name" env:"DB_NAME"`
}

func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName,
	)
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type RateLimiter struct {
	RPS   int `yaml:"rps" env-default:"20"`
	Burst int `yaml:"burst" env-default:"40"`
}

// Kafka publishing is disabled when Brokers is empty. With search enabled
// the index is fed from the events topic by the GroupId consumer group.
type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	EventsTopic string   `yaml:"topic" env-default:"task-events"`
	GroupId     string   `yaml:"group_id" env-default:"taskmaster-indexer"`
}

// Search is disabled when Addresses is empty.
type Elasticsearch struct {
	Addresses []string `yaml:"addresses" env:"ELASTICSEARCH_ADDRESSES"`
	Index     string   `yaml:"index" env-default:"tasks"`
}

type DocStore struct {
	Driver    string    `yaml:"driver" env:"DOCSTORE_DRIVER" env-default:"postgres"`
	Firestore Firestore `yaml:"firestore"`
}

type Firestore struct {
	ProjectID       string `yaml:"project_id" env:"FIRESTORE_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

func MustLoadConfig() *Config {
	godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		panic("No config path in env")
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DocStore.Driver {
	case DriverMemory:
	case DriverPostgres, DriverFirestore:
		// accounts live in postgres for every driver but memory
		if c.DB.User == "" || c.DB.DBName == "" {
			return fmt.Errorf("db: user and db_name are required for the %s driver", c.DocStore.Driver)
		}
	default:
		return fmt.Errorf("docstore: unknown driver %q", c.DocStore.Driver)
	}
	if c.DocStore.Driver == DriverFirestore {
		if c.DocStore.Firestore.ProjectID == "" {
			return fmt.Errorf("docstore: firestore driver needs project_id")
		}
	}
	if c.Params.Text.Max > 0 && c.Params.Text.Min > c.Params.Text.Max {
		return fmt.Errorf("params.text: min %d > max %d", c.Params.Text.Min, c.Params.Text.Max)
	}
	return nil
}
