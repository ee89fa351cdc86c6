// Package config loads the server settings from the environment and the
// training settings from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Server struct {
	Port          string   `validate:"required,numeric"`
	Environment   string   `validate:"oneof=development production test"`
	LogLevel      string   `validate:"oneof=debug info warn error"`
	GinMode       string   `validate:"oneof=debug release test"`
	ArtifactStore string   `validate:"oneof=file postgres"`
	ArtifactDir   string   `validate:"required_if=ArtifactStore file"`
	DatabaseURL   string   `validate:"required_if=ArtifactStore postgres"`
	TopK          int      `validate:"min=1,max=50"`
	CORSOrigins   []string `validate:"min=1,dive,required"`
}

// LoadServer reads .env when present, then the process environment.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	topK, err := strconv.Atoi(GetEnv("TOP_K", "3"))
	if err != nil {
		return nil, fmt.Errorf("TOP_K must be an integer: %w", err)
	}

	cfg := &Server{
		Port:          GetEnv("PORT", "8080"),
		Environment:   strings.ToLower(GetEnv("ENVIRONMENT", "production")),
		LogLevel:      strings.ToLower(GetEnv("LOG_LEVEL", "info")),
		GinMode:       GetEnv("GIN_MODE", "release"),
		ArtifactStore: strings.ToLower(GetEnv("ARTIFACT_STORE", StoreFile)),
		ArtifactDir:   GetEnv("ARTIFACT_DIR", "artifacts"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		TopK:          topK,
		CORSOrigins:   splitList(GetEnv("CORS_ORIGINS", "*")),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the variable or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
