package config

import (
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Client configures the taskmaster CLI. It is read from the environment only.
type Client struct {
	Address         string `env:"TASKMASTER_ADDRESS" env-default:"localhost:50051"`
	CredentialsPath string `env:"TASKMASTER_CREDENTIALS"`
	ExportDir       string `env:"TASKMASTER_EXPORT_DIR" env-default:"."`
	LogLevel        string `env:"TASKMASTER_LOG_LEVEL" env-default:"error"`
}

func LoadClient() (*Client, error) {
	godotenv.Load()

	var cfg Client
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.CredentialsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.CredentialsPath = filepath.Join(dir, "taskmaster", "credentials.yaml")
	}
	return &cfg, nil
}
