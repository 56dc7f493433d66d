// Package config provides configuration management for the EC2 Fleet
// Exporter.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - EC2_FLEET_EXPORTER_HTTP_PORT: HTTP server port (1-65535)
//   - EC2_FLEET_EXPORTER_LOG_LEVEL: Log level (debug, info, warn, error)
//   - EC2_FLEET_EXPORTER_REGION: Region override for every configured poller
//   - EC2_FLEET_EXPORTER_POLL_PERIOD: Poll period override in seconds (minimum: 5)
//
// The main type is Config. Each poller has its own section, and a section
// that is absent from the file disables that poller; at least one section is
// required. Both sections share the provider access fields region,
// credentials_provider (default, environment, profile, instance, container)
// and profile.
//
// Example configuration file (config.yaml):
//
//	http_port: 8080
//	log_level: "info"
//
//	instances:
//	  region: "eu-west-1"
//	  credentials_provider: "profile"
//	  profile: "observability"
//	  expose_tags: ["team", "environment"]
//	  page_size: 200
//	  poll_period: 60
//
//	spot_prices:
//	  region: "eu-west-1"
//	  credentials_provider: "profile"
//	  profile: "observability"
//	  availability_zones: ["eu-west-1a", "eu-west-1b"]
//	  instance_types: ["m5.large", "m5.xlarge"]
//	  products: ["Linux/UNIX"]
//	  poll_period: 120
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatalf("Failed to load config: %v", err)
//	}
//
//	if cfg.Instances != nil {
//		fmt.Printf("Polling instances in %s every %d seconds\n",
//			cfg.Instances.Region, cfg.Instances.PollPeriod)
//	}
package config
