package config

import (
	"os"
)

// LogLevel returns the zerolog level for this invocation.
func LogLevel() string {
	return getEnv("BOTCTL_LOG_LEVEL", "info")
}

// SSHKeyPath returns the private key path configured via the environment,
// or "" when unset. The -key flag takes precedence over this.
func SSHKeyPath() string {
	return getEnv("BOTCTL_SSH_KEY", "")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
