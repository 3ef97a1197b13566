// Package config handles loading and validating wearsync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (WEARSYNC_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.PairID)
package config
