// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mapillary"
)

// EnvPrefix prefixes every environment variable, e.g. MAPILLARY_API_ACCESS_TOKEN
const EnvPrefix = "MAPILLARY"

// Config represents the complete application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Network NetworkConfig `mapstructure:"network"`
	Query   QueryConfig   `mapstructure:"query"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// APIConfig contains the access token and the upstream endpoints
type APIConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	TilesBaseURL string `mapstructure:"tiles_base_url"`
	GraphBaseURL string `mapstructure:"graph_base_url"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	Concurrency      int           `mapstructure:"concurrency"`
	MaxTiles         int           `mapstructure:"max_tiles"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	ProxyURL         string        `mapstructure:"proxy_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout"`
	DisableKeepAlive bool          `mapstructure:"disable_keep_alive"`
}

// QueryConfig holds defaults for geographic queries
type QueryConfig struct {
	Radius          float64 `mapstructure:"radius"`
	Units           string  `mapstructure:"units"`
	LookAtTolerance float64 `mapstructure:"look_at_tolerance"`
	Computed        bool    `mapstructure:"computed"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format      string  `mapstructure:"format"`
	Filename    string  `mapstructure:"filename"`
	Compression bool    `mapstructure:"compression"`
	Pretty      bool    `mapstructure:"pretty"`
	Simplify    float64 `mapstructure:"simplify"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
}

// ServerConfig configures the HTTP facade started by serve
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics"`
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v, applying defaults first
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// BindEnv makes v read MAPILLARY_SECTION_KEY environment variables
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	transport := mapillary.DefaultTransportConfig()

	// API defaults
	v.SetDefault("api.access_token", "")
	v.SetDefault("api.tiles_base_url", mapillary.DefaultTilesBaseURL)
	v.SetDefault("api.graph_base_url", mapillary.DefaultGraphBaseURL)

	// Network defaults
	v.SetDefault("network.timeout", mapillary.DefaultRequestTimeout)
	v.SetDefault("network.concurrency", mapillary.DefaultConcurrency)
	v.SetDefault("network.max_tiles", mapillary.DefaultMaxTiles)
	v.SetDefault("network.max_body_bytes", transport.MaxBodyBytes)
	v.SetDefault("network.proxy_url", "")
	v.SetDefault("network.user_agent", transport.UserAgent)
	v.SetDefault("network.max_idle_conns", transport.MaxIdleConns)
	v.SetDefault("network.idle_conn_timeout", transport.IdleConnTimeout)
	v.SetDefault("network.disable_keep_alive", false)

	// Query defaults
	v.SetDefault("query.radius", mapillary.DefaultRadius)
	v.SetDefault("query.units", filter.UnitMeters)
	v.SetDefault("query.look_at_tolerance", filter.DefaultLookAtTolerance)
	v.SetDefault("query.computed", false)

	// Output defaults
	v.SetDefault("output.format", "geojson")
	v.SetDefault("output.filename", "")
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.compression", false)
	v.SetDefault("output.simplify", 0.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.verbose", false)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics", true)
}

// Session creates the session for the configured access token
func (c *Config) Session() *mapillary.Session {
	return mapillary.NewSession(c.API.AccessToken)
}

// TransportConfig converts the network section to a transport configuration
func (c *Config) TransportConfig() mapillary.TransportConfig {
	return mapillary.TransportConfig{
		Timeout:          c.Network.Timeout,
		ProxyURL:         c.Network.ProxyURL,
		UserAgent:        c.Network.UserAgent,
		MaxIdleConns:     c.Network.MaxIdleConns,
		MaxConnsPerHost:  c.Network.Concurrency,
		IdleConnTimeout:  c.Network.IdleConnTimeout,
		DisableKeepAlive: c.Network.DisableKeepAlive,
		MaxBodyBytes:     c.Network.MaxBodyBytes,
	}
}

// ClientOptions maps the configuration to client options. A nil observer
// leaves the client's default in place.
func (c *Config) ClientOptions(logger zerolog.Logger, observer mapillary.Observer) ([]mapillary.Option, error) {
	transport, err := mapillary.NewHTTPTransport(c.TransportConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	opts := []mapillary.Option{
		mapillary.WithTransport(transport),
		mapillary.WithEndpoints(mapillary.Endpoints{
			TilesBaseURL: c.API.TilesBaseURL,
			GraphBaseURL: c.API.GraphBaseURL,
		}),
		mapillary.WithLogger(logger),
		mapillary.WithConcurrency(c.Network.Concurrency),
		mapillary.WithRequestTimeout(c.Network.Timeout),
		mapillary.WithMaxTiles(c.Network.MaxTiles),
	}
	if observer != nil {
		opts = append(opts, mapillary.WithObserver(observer))
	}
	return opts, nil
}

// NewClient creates a client from the configuration
func (c *Config) NewClient(logger zerolog.Logger, observer mapillary.Observer) (*mapillary.Client, error) {
	opts, err := c.ClientOptions(logger, observer)
	if err != nil {
		return nil, err
	}
	return mapillary.New(c.Session(), opts...)
}
