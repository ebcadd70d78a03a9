// Package config loads and validates the sensor gateway's configuration.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables prefixed SENSORGW_, matching the precedence order: built-in
// defaults, then file, then environment.
//
// Usage:
//
//	cfg, err := config.Load("/etc/sensorgw/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
