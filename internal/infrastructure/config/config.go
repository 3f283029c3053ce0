// Package config handles configuration loading.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/tesso57/omnivore-rss-export/internal/application/settings"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are left untouched.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "omnivore-rss-export", "config.yaml"), nil
}

// Load resolves settings from defaults, environment variables and an
// optional YAML file at the specified path or default location.
// Required Omnivore values are validated; a *settings.ConfigurationError is
// returned together with the partially resolved settings when any is missing.
func Load(customPath ...string) (settings.Settings, error) {
	var configPath string
	if len(customPath) > 0 && customPath[0] != "" {
		configPath = customPath[0]
	} else {
		p, err := DefaultPath()
		if err != nil {
			return settings.Settings{}, err
		}
		configPath = p
	}

	cfg := settings.Settings{}

	var options []kong.Option

	// Only add configuration loader if file exists
	if _, err := os.Stat(configPath); err == nil {
		options = append(options, kong.Configuration(yamlKongLoader, configPath))
	}

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return settings.Settings{}, err
	}

	if _, err := parser.Parse([]string{}); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to resolve configuration: %w", err)
	}

	cfg.Omnivore.APIToken = strings.TrimSpace(cfg.Omnivore.APIToken)
	cfg.Omnivore.Host = strings.TrimSpace(cfg.Omnivore.Host)
	cfg.Omnivore.GraphQLPath = strings.TrimSpace(cfg.Omnivore.GraphQLPath)
	if strings.TrimSpace(cfg.Export.OutputDir) == "" {
		cfg.Export.OutputDir = "."
	}

	return cfg, cfg.Omnivore.Validate()
}

func yamlKongLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if err == io.EOF {
			return nil, nil // Return nil resolver (no op)
		}
		return nil, err
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		// Try various naming conventions
		names := []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")}
		for _, name := range names {
			if v, ok := values[name]; ok {
				return v, nil
			}
			if v, ok := lookupNested(values, strings.Split(name, ".")); ok {
				return v, nil
			}
		}
		return nil, nil
	}
	return f, nil
}

// lookupNested walks dot-separated keys through nested YAML maps.
func lookupNested(values map[string]any, parts []string) (any, bool) {
	if len(parts) < 2 {
		return nil, false
	}
	curr := values
	for _, part := range parts[:len(parts)-1] {
		next, ok := curr[part].(map[string]any)
		if !ok {
			return nil, false
		}
		curr = next
	}
	v, ok := curr[parts[len(parts)-1]]
	return v, ok
}
