// Package config handles loading and validating indicator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (INDICATOR_* and the firmware's MQTT_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (broker password, JWT secret, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Name)
package config
