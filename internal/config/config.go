package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/awsapi"
)

// Configuration validation constants
const (
	MinPollPeriod = 5     // Minimum poll period in seconds
	MinPort       = 1     // Minimum valid port number
	MaxPort       = 65535 // Maximum valid port number

	// Page size bounds imposed by the EC2 API. DescribeInstances accepts
	// 5..1000, DescribeSpotPriceHistory 1..1000.
	MinInstancesPageSize = 5
	MinSpotPageSize      = 1
	MaxPageSize          = 1000

	// Default values
	DefaultPollPeriod = 60 // 1 minute in seconds
	DefaultHTTPPort   = 8080
	DefaultLogLevel   = "info"
)

// labelNamePattern is what Prometheus accepts as a label name. Expose tags
// become label names verbatim, so they must match it.
var labelNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// AWSSettings is the provider access block shared by both poller sections
type AWSSettings struct {
	Region              string `yaml:"region"`
	CredentialsProvider string `yaml:"credentials_provider"`
	Profile             string `yaml:"profile"`
}

// InstancesSettings configures the running instances poller
type InstancesSettings struct {
	AWSSettings `yaml:",inline"`
	ExposeTags  []string `yaml:"expose_tags"`
	PageSize    *int32   `yaml:"page_size"`   // Pointer to distinguish between 0 and unset
	PollPeriod  int      `yaml:"poll_period"` // seconds
}

// SpotPricesSettings configures the spot prices poller
type SpotPricesSettings struct {
	AWSSettings       `yaml:",inline"`
	AvailabilityZones []string `yaml:"availability_zones"`
	InstanceTypes     []string `yaml:"instance_types"`
	Products          []string `yaml:"products"`
	PageSize          *int32   `yaml:"page_size"`   // Pointer to distinguish between 0 and unset
	PollPeriod        int      `yaml:"poll_period"` // seconds
}

// Config represents the application configuration. A poller section left out
// of the file leaves that poller disabled.
type Config struct {
	HTTPPort   int                 `yaml:"http_port"`
	LogLevel   string              `yaml:"log_level"`
	Instances  *InstancesSettings  `yaml:"instances"`
	SpotPrices *SpotPricesSettings `yaml:"spot_prices"`
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// Read YAML file
	// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Override with environment variables
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	// Validate
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Instances != nil && cfg.Instances.PollPeriod == 0 {
		cfg.Instances.PollPeriod = DefaultPollPeriod
	}
	if cfg.SpotPrices != nil && cfg.SpotPrices.PollPeriod == 0 {
		cfg.SpotPrices.PollPeriod = DefaultPollPeriod
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	// Override HTTP port
	if val := os.Getenv("EC2_FLEET_EXPORTER_HTTP_PORT"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid EC2_FLEET_EXPORTER_HTTP_PORT: must be an integer, got %q", val)
		}
		cfg.HTTPPort = i
	}

	// Override log level
	if val := os.Getenv("EC2_FLEET_EXPORTER_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	// Override the region of every configured poller section
	if val := os.Getenv("EC2_FLEET_EXPORTER_REGION"); val != "" {
		if cfg.Instances != nil {
			cfg.Instances.Region = val
		}
		if cfg.SpotPrices != nil {
			cfg.SpotPrices.Region = val
		}
	}

	// Override the poll period of every configured poller section
	if val := os.Getenv("EC2_FLEET_EXPORTER_POLL_PERIOD"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid EC2_FLEET_EXPORTER_POLL_PERIOD: must be an integer, got %q", val)
		}
		if cfg.Instances != nil {
			cfg.Instances.PollPeriod = i
		}
		if cfg.SpotPrices != nil {
			cfg.SpotPrices.PollPeriod = i
		}
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}

	if cfg.Instances == nil && cfg.SpotPrices == nil {
		return fmt.Errorf("no pollers configured: add an instances or spot_prices section")
	}

	if cfg.Instances != nil {
		if err := validateAWS(&cfg.Instances.AWSSettings, "instances"); err != nil {
			return err
		}
		if err := validatePollPeriod(cfg.Instances.PollPeriod, "instances"); err != nil {
			return err
		}
		if err := validatePageSize(cfg.Instances.PageSize, MinInstancesPageSize, "instances"); err != nil {
			return err
		}
		for _, tag := range cfg.Instances.ExposeTags {
			if !labelNamePattern.MatchString(tag) {
				return fmt.Errorf("instances.expose_tags entry %q is not a valid label name", tag)
			}
		}
	}

	if cfg.SpotPrices != nil {
		if err := validateAWS(&cfg.SpotPrices.AWSSettings, "spot_prices"); err != nil {
			return err
		}
		if err := validatePollPeriod(cfg.SpotPrices.PollPeriod, "spot_prices"); err != nil {
			return err
		}
		if err := validatePageSize(cfg.SpotPrices.PageSize, MinSpotPageSize, "spot_prices"); err != nil {
			return err
		}
		if err := validateFilterValues(cfg.SpotPrices.AvailabilityZones, "spot_prices.availability_zones"); err != nil {
			return err
		}
		if err := validateFilterValues(cfg.SpotPrices.InstanceTypes, "spot_prices.instance_types"); err != nil {
			return err
		}
		if err := validateFilterValues(cfg.SpotPrices.Products, "spot_prices.products"); err != nil {
			return err
		}
	}

	return nil
}

// validateAWS validates the provider access block of one poller section
func validateAWS(s *AWSSettings, section string) error {
	if s.Region == "" {
		return fmt.Errorf("%s.region is required", section)
	}
	if !awsapi.KnownCredentialsProvider(awsapi.CredentialsProviderType(s.CredentialsProvider)) {
		return fmt.Errorf("%s.credentials_provider %q is not supported", section, s.CredentialsProvider)
	}
	return nil
}

func validatePollPeriod(seconds int, section string) error {
	if seconds < MinPollPeriod {
		return fmt.Errorf("%s.poll_period must be at least %d seconds, got %d", section, MinPollPeriod, seconds)
	}
	return nil
}

func validatePageSize(size *int32, floor int32, section string) error {
	if size == nil {
		return nil
	}
	if *size < floor || *size > MaxPageSize {
		return fmt.Errorf("%s.page_size must be between %d and %d, got %d", section, floor, MaxPageSize, *size)
	}
	return nil
}

func validateFilterValues(values []string, field string) error {
	for i, v := range values {
		if v == "" {
			return fmt.Errorf("%s entry at index %d is empty", field, i)
		}
	}
	return nil
}
