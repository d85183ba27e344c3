// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration structure and values. A missing
// access token is not an error here; commands that reach the network
// report it when they run.
func Validate(config *Config) error {
	if err := validateAPI(&config.API); err != nil {
		return fmt.Errorf("api configuration invalid: %w", err)
	}

	if err := validateNetwork(&config.Network); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}

	if err := validateQuery(&config.Query); err != nil {
		return fmt.Errorf("query configuration invalid: %w", err)
	}

	if err := validateOutput(&config.Output); err != nil {
		return fmt.Errorf("output configuration invalid: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}

	return nil
}

// validateAPI validates the upstream endpoints
func validateAPI(config *APIConfig) error {
	if err := validateBaseURL("tiles_base_url", config.TilesBaseURL); err != nil {
		return err
	}
	return validateBaseURL("graph_base_url", config.GraphBaseURL)
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	return nil
}

// validateNetwork validates network configuration parameters
func validateNetwork(config *NetworkConfig) error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if config.Concurrency > 256 {
		return fmt.Errorf("concurrency must not exceed 256")
	}

	if config.MaxTiles < 0 {
		return fmt.Errorf("max_tiles must be non-negative")
	}

	if config.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be non-negative")
	}

	if config.ProxyURL != "" {
		if _, err := url.Parse(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
	}

	if config.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative")
	}

	if config.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if config.IdleConnTimeout < 0 {
		return fmt.Errorf("idle_conn_timeout must be non-negative")
	}

	return nil
}

// validateQuery validates query defaults
func validateQuery(config *QueryConfig) error {
	if config.Radius <= 0 {
		return fmt.Errorf("radius must be positive")
	}

	validUnits := []string{"m", "km", "mi", "ft"}
	if !contains(validUnits, config.Units) {
		return fmt.Errorf("invalid units: %s, must be one of %v", config.Units, validUnits)
	}

	if config.LookAtTolerance <= 0 || config.LookAtTolerance > 180 {
		return fmt.Errorf("look_at_tolerance must be in (0, 180]")
	}

	return nil
}

// validateOutput validates output configuration parameters
func validateOutput(config *OutputConfig) error {
	validFormats := []string{"geojson", "csv"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid format: %s, must be one of %v", config.Format, validFormats)
	}

	if config.Simplify < 0 {
		return fmt.Errorf("simplify must be non-negative")
	}

	return nil
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of %v", config.Level, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of %v", config.Format, validFormats)
	}

	return nil
}

// validateServer validates the HTTP facade settings
func validateServer(config *ServerConfig) error {
	if config.Addr == "" {
		return fmt.Errorf("addr is required")
	}

	if config.ReadTimeout < 0 || config.WriteTimeout < 0 {
		return fmt.Errorf("read_timeout and write_timeout must be non-negative")
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

// contains checks if a string slice contains a specific string (case-insensitive)
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
