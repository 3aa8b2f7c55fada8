// Package config loads service configuration from the environment using
// envconfig, matching the key/value table the service is specified against
// rather than a YAML file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every environment-variable-driven setting the service
// reads at startup.
type Config struct {
	Resource struct {
		CustomerID   string        `envconfig:"CUSTOMER_ID" required:"true"`
		Domain       string        `envconfig:"DOMAIN" required:"true"`
		CacheTimeout time.Duration `envconfig:"CACHE_TIMEOUT" default:"5m"`
		// Environments maps environment name -> policy document source,
		// populated by scanning RESOURCE_ENVIRONMENT_<name> variables
		// directly; envconfig has no notion of a dynamically-keyed map.
		Environments map[string]string `ignored:"true"`
	} `envconfig:"RESOURCE"`

	ListenAddr          string        `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	DeferralSigningKey  string        `envconfig:"DEFERRAL_SIGNING_KEY" required:"true"`
	DeferralTTL         time.Duration `envconfig:"DEFERRAL_TTL" default:"72h"`
	SubjectResolverPool int           `envconfig:"SUBJECT_RESOLVER_POOL" default:"8"`
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.Resource.Environments = scanEnvironmentSources()
	return &cfg, nil
}

// scanEnvironmentSources collects every RESOURCE_ENVIRONMENT_<name>
// variable into a name -> source map, since the set of environments isn't
// known ahead of time and so can't be a fixed envconfig field.
func scanEnvironmentSources() map[string]string {
	const prefix = "RESOURCE_ENVIRONMENT_"
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		out[name] = value
	}
	return out
}
