package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"sentrypulse/pkg/sentryerr"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces every ${NAME} token in raw with the named
// environment variable's value. An unresolved name is a fatal load error —
// it is never silently replaced with an empty string. Substitution happens
// once over the raw text, so it does not recurse into substituted values.
func substituteEnv(raw string) (string, error) {
	var missing string
	result := envVarPattern.ReplaceAllStringFunc(raw, func(token string) string {
		name := envVarPattern.FindStringSubmatch(token)[1]
		val, ok := os.LookupEnv(name)
		if !ok && missing == "" {
			missing = name
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("environment variable %q is not set", missing)
	}
	return result, nil
}

// LoadFromString parses raw TOML text the same way LoadFromFile does, minus
// the file I/O: substitute env vars, decode, apply defaults, validate.
func LoadFromString(raw string) (*Config, error) {
	substituted, err := substituteEnv(raw)
	if err != nil {
		return nil, &sentryerr.ConfigLoadError{Reason: "env-var-missing", Err: err}
	}

	var cfg Config
	if _, err := toml.Decode(substituted, &cfg); err != nil {
		return nil, &sentryerr.ConfigLoadError{Reason: "parse-failure", Err: err}
	}

	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, &sentryerr.ConfigLoadError{Reason: "validation-failure", Err: err}
	}

	return &cfg, nil
}

// LoadFromFile reads path, substitutes ${NAME} environment references,
// parses the TOML document, and validates the whole tree.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &sentryerr.ConfigLoadError{Path: path, Reason: "file-not-found", Err: err}
	}

	cfg, err := LoadFromString(string(data))
	if err != nil {
		if le, ok := err.(*sentryerr.ConfigLoadError); ok {
			le.Path = path
			return nil, le
		}
		return nil, err
	}
	return cfg, nil
}
