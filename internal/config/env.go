package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds overrides read from FLOWCTL_* environment variables.
type Env struct {
	APIURL    string `envconfig:"API_URL"`
	AuthToken string `envconfig:"AUTH_TOKEN"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

const namespace = "FLOWCTL"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}
