package stardog

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config binds a connection to one database on one server.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadConfig reads connection settings in ascending precedence: a YAML file
// (optional), a .env file in the working directory (optional), then process
// environment variables. Credentials normally arrive through the
// environment so config files can be committed without secrets.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("stardog: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("stardog: parse config %s: %w", path, err)
		}
	}

	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	if v := os.Getenv("STARDOG_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("STARDOG_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("STARDOG_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("STARDOG_PASSWORD"); v != "" {
		cfg.Password = v
	}
	return cfg, nil
}
