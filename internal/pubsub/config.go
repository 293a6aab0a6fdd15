package pubsub

import (
	"os"
	"strconv"
)

// LoadTracingConfigFromEnv overlays RELAY_TRACING_* environment variables on base.
func LoadTracingConfigFromEnv(base TracingConfig) TracingConfig {
	config := base

	if enabledStr := os.Getenv("RELAY_TRACING_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			config.Enabled = enabled
		}
	}

	if serviceName := os.Getenv("RELAY_TRACING_SERVICE_NAME"); serviceName != "" {
		config.ServiceName = serviceName
	}

	if zipkinURL := os.Getenv("RELAY_TRACING_ZIPKIN_URL"); zipkinURL != "" {
		config.ZipkinURL = zipkinURL
	}

	return config
}
