// Package settings defines application-level configuration data.
package settings

import (
	"fmt"
	"strings"
	"time"
)

// OmnivoreConfig defines how to reach the Omnivore GraphQL API.
type OmnivoreConfig struct {
	APIToken       string `yaml:"api_token" kong:"name='api-token',help='Omnivore API token',env='OMNIVORE_API_TOKEN'"`
	Host           string `yaml:"host" kong:"name='host',help='Omnivore API host',env='OMNIVORE_HOST'"`
	GraphQLPath    string `yaml:"graphql_path" kong:"name='graphql-path',help='GraphQL endpoint path',env='OMNIVORE_GRAPH_QL_PATH'"`
	TimeoutSeconds int    `yaml:"timeout_seconds" kong:"name='timeout-seconds',help='HTTP timeout in seconds',env='OMNIVORE_TIMEOUT_SECONDS',default='30'"`
}

// ExportConfig defines where and how the OPML file is written.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" kong:"name='output-dir',help='Directory for the OPML file',env='OMNIVORE_EXPORT_DIR',default='.'"`
	Title     string `yaml:"title" kong:"name='title',help='OPML document title prefix',env='OMNIVORE_EXPORT_TITLE',default='Omnivore RSS Subscriptions Export'"`
}

// Settings represents the application configuration.
type Settings struct {
	Omnivore OmnivoreConfig `yaml:"omnivore" kong:"embed,prefix='omnivore.'"`
	Export   ExportConfig   `yaml:"export" kong:"embed,prefix='export.'"`
	LogLevel string         `yaml:"log_level" kong:"name='log-level',help='Log level (debug/info/warn/error)',env='OMNIVORE_LOG_LEVEL',default='info'"`
}

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// Validate returns a *ConfigurationError naming every required value that is
// empty, in the order token, host, path.
func (c OmnivoreConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "OMNIVORE_API_TOKEN")
	}
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "OMNIVORE_HOST")
	}
	if strings.TrimSpace(c.GraphQLPath) == "" {
		missing = append(missing, "OMNIVORE_GRAPH_QL_PATH")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Endpoint returns the GraphQL URL. Hosts without a scheme use https.
func (c OmnivoreConfig) Endpoint() string {
	host := strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	path := strings.TrimSpace(c.GraphQLPath)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

// Timeout returns the HTTP timeout as a duration.
func (c OmnivoreConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
