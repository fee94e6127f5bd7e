// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Limiter LimiterConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LimiterConfig struct {
	// Env seleciona a tabela de políticas embutida (local | production).
	Env string

	DynamicEnabled bool
	LegacyHeaders  bool

	// SensitivePaths recebem o burst guard.
	SensitivePaths []string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storage, err := buildStorageConfig()
	if err != nil {
		return Config{}, err
	}

	limiter, err := buildLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{Server: server, Storage: storage, Limiter: limiter}, nil
}

// PolicySet devolve a tabela embutida selecionada pelo ambiente capturado
// no carregamento desta configuração. Usado no startup.
func (c Config) PolicySet() (domain.PolicySet, error) {
	return PolicySetForEnv(c.Limiter.Env)
}

// ReloadPolicySet relê o ambiente do processo (incluindo o .env) e devolve
// a tabela embutida correspondente. É o carregador do reload
// administrativo: um flip de APP_ENV entra em vigor sem reiniciar.
func ReloadPolicySet() (domain.PolicySet, error) {
	cfg, err := Load()
	if err != nil {
		return domain.PolicySet{}, err
	}
	return PolicySetForEnv(cfg.Limiter.Env)
}

func buildStorageConfig() (StorageConfig, error) {
	storageType := getEnv("STORAGE_TYPE", "memory")
	if storageType != "memory" && storageType != "redis" {
		return StorageConfig{}, fmt.Errorf("unsupported STORAGE_TYPE: %s", storageType)
	}

	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return StorageConfig{
		Type: storageType,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     port,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		},
	}, nil
}

func buildLimiterConfig() (LimiterConfig, error) {
	env := getEnv("APP_ENV", EnvLocal)
	if env != EnvLocal && env != EnvProduction {
		return LimiterConfig{}, fmt.Errorf("unsupported APP_ENV: %s", env)
	}

	dynamicDefault := "false"
	if env == EnvProduction {
		dynamicDefault = "true"
	}
	dynamic, err := strconv.ParseBool(getEnv("RATE_LIMIT_DYNAMIC_ENABLED", dynamicDefault))
	if err != nil {
		return LimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_DYNAMIC_ENABLED: %w", err)
	}

	legacy, err := strconv.ParseBool(getEnv("RATE_LIMIT_LEGACY_HEADERS", "false"))
	if err != nil {
		return LimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_LEGACY_HEADERS: %w", err)
	}

	return LimiterConfig{
		Env:            env,
		DynamicEnabled: dynamic,
		LegacyHeaders:  legacy,
		SensitivePaths: splitPaths(getEnv("RATE_LIMIT_SENSITIVE_PATHS", defaultSensitivePaths)),
	}, nil
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
