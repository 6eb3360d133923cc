// Package config loads and validates railcontrol configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with RAILCONTROL_* environment variables
//   - Validation of required fields and automode tuning
//   - Default value handling
//
// Security Considerations:
//   - Secrets (JWT secret, MQTT password, InfluxDB token) belong in the
//     environment or a .env file, not in the YAML
//   - Operator passwords are stored only as Argon2id hashes
//
// Usage:
//
//	cfg, err := config.Load("configs/railcontrol.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Automode.TickInterval())
package config
