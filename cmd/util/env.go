package util

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ApplyEnv fills connection and location flags the user did not set from
// the environment.
func (c *Config) ApplyEnv(cmd *cobra.Command) {
	fallbacks := []struct {
		flag   string
		env    string
		target *string
	}{
		{"dialect", "RELMIG_DIALECT", &c.Dialect},
		{"host", "PGHOST", &c.Host},
		{"db", "PGDATABASE", &c.Database},
		{"user", "PGUSER", &c.User},
		{"password", "PGPASSWORD", &c.Password},
		{"migrations", "RELMIG_MIGRATIONS", &c.MigrationsDir},
		{"model", "RELMIG_MODEL", &c.ModelPath},
	}
	for _, f := range fallbacks {
		if !cmd.Flags().Changed(f.flag) {
			*f.target = GetEnvWithDefault(f.env, *f.target)
		}
	}
	if !cmd.Flags().Changed("port") {
		c.Port = GetEnvIntWithDefault("PGPORT", c.Port)
	}
}
