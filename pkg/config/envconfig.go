// Package config loads the agent's environment configuration.
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Launcher backends.
const (
	LauncherProcess = "process"
	LauncherDocker  = "docker"
	LauncherK8s     = "k8s"
)

// Registry backends.
const (
	RegistryInline   = "inline"
	RegistryPostgres = "postgres"
)

type EnvConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	BaseDir     string `envconfig:"GENIE_BASE_DIR"`

	Launcher     string `envconfig:"GENIE_LAUNCHER" default:"process"`
	DockerImage  string `envconfig:"GENIE_DOCKER_IMAGE"`
	K8sNamespace string `envconfig:"GENIE_K8S_NAMESPACE" default:"default"`
	K8sImage     string `envconfig:"GENIE_K8S_IMAGE"`

	Registry   string `envconfig:"GENIE_REGISTRY" default:"inline"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"genie"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"genie"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	ValkeyAddr     string `envconfig:"VALKEY_ADDR"`
	ValkeyPassword string `envconfig:"VALKEY_PASSWORD"`
	ValkeyDB       int    `envconfig:"VALKEY_DB" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Region    string `envconfig:"S3_REGION"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`

	ArchiveTimeout int `envconfig:"ARCHIVE_TIMEOUT" default:"300"` // seconds
}

// IsDev reports whether the agent runs in the development environment.
func (c *EnvConfig) IsDev() bool {
	return c.Environment == "development"
}

func ValidateEnv() (*EnvConfig, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errors []string

	switch cfg.Launcher {
	case LauncherProcess:
	case LauncherDocker:
		if cfg.DockerImage == "" {
			errors = append(errors, "  GENIE_DOCKER_IMAGE is required when GENIE_LAUNCHER=docker")
		}
	case LauncherK8s:
		if cfg.K8sImage == "" {
			errors = append(errors, "  GENIE_K8S_IMAGE is required when GENIE_LAUNCHER=k8s")
		}
	default:
		errors = append(errors, fmt.Sprintf("  GENIE_LAUNCHER must be one of process, docker, k8s (got %q)", cfg.Launcher))
	}

	if cfg.Registry != RegistryInline && cfg.Registry != RegistryPostgres {
		errors = append(errors, fmt.Sprintf("  GENIE_REGISTRY must be inline or postgres (got %q)", cfg.Registry))
	}

	if cfg.S3Endpoint != "" && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		errors = append(errors, "  S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return &cfg, nil
}

// MaskSecret hides all but the edges of a secret for display.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Print writes a configuration summary through the given formatter.
func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("configuration:\n")
	fmtr("  environment: %s\n", c.Environment)
	fmtr("  launcher: %s\n", c.Launcher)
	fmtr("  registry: %s\n", c.Registry)
	if c.Registry == RegistryPostgres {
		fmtr("  database: %s@%s:%d/%s (sslmode=%s)\n", c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
	}
	if c.ValkeyAddr != "" {
		fmtr("  valkey: %s (db=%d)\n", c.ValkeyAddr, c.ValkeyDB)
	} else {
		fmtr("  valkey: <not set, using in-memory reservations>\n")
	}
	if c.S3Endpoint != "" {
		fmtr("  s3: %s (access key %s)\n", c.S3Endpoint, MaskSecret(c.S3AccessKey))
	} else {
		fmtr("  s3: <not set, file archival only>\n")
	}
}
