// Package config provides environment variable helpers and the shared
// configuration structs of the console's OIDC login.
//
// # Environment Variable Helpers
//
//	origin := config.GetEnvOrDefault("BASE_URL", "http://localhost:4000")
//	verify := config.GetEnvBool("OIDC_VERIFY_ID_TOKEN", false)
//	timeout := config.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second)
//
// # Feature Configuration
//
// Every feature struct follows the same pattern: a DefaultXConfig constructor,
// a NewXConfigFromEnv loader for the standard variable names, and a Validate
// method built from the Require* validators.
//
//	cfg := config.NewLoginRequestStoreConfigFromEnv()
//	if err := cfg.Validate(); err != nil {
//		return fmt.Errorf("invalid login request store configuration: %w", err)
//	}
//
// Never log secrets such as REDIS_PASSWORD.
package config
