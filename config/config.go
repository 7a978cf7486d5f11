// Package config loads gateway settings from file, environment and an
// optional fabric_rc file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fabric-testbed/reports-mcp/backend"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	configDirName  = "reports-mcp"

	DefaultPort = 4000
)

// duration wraps time.Duration for YAML unmarshaling.
type duration struct {
	d time.Duration
}

func (d *duration) unmarshalText(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.d = parsed
	return nil
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	return d.unmarshalText(value.Value)
}

func (d *duration) Duration() time.Duration {
	return d.d
}

// Config for the gateway. Pointer fields; nil = unset.
type Config struct {
	Port           *int      `yaml:"port"`
	APIURL         *string   `yaml:"api_url"`
	APIToken       *string   `yaml:"api_token"`
	RequestTimeout *duration `yaml:"request_timeout"`
	FabricRC       *string   `yaml:"fabric_rc"`
	TokenFile      *string   `yaml:"token_file"`

	// fabricToken comes from FABRIC_TOKEN only.
	fabricToken *string
}

// environment is decoded by envdecode. Empty variables count as unset.
type environment struct {
	Port           int           `env:"MCP_SERVER_PORT"`
	APIURL         string        `env:"MCP_API_URL"`
	APIToken       string        `env:"MCP_API_TOKEN"`
	RequestTimeout time.Duration `env:"MCP_REQUEST_TIMEOUT"`
	FabricRC       string        `env:"FABRIC_RC"`
	TokenFile      string        `env:"FABRIC_TOKEN_LOCATION"`
	FabricToken    string        `env:"FABRIC_TOKEN"`
}

// LoadFrom loads config from path. Missing files return zero Config, nil.
func LoadFrom(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Load() (Config, error) {
	return LoadFrom(defaultConfigPath())
}

func (c *Config) applyEnvOverrides() error {
	var env environment
	err := envdecode.StrictDecode(&env)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return fmt.Errorf("parse environment: %w", err)
	}

	if env.Port != 0 {
		c.Port = &env.Port
	}
	if env.APIURL != "" {
		c.APIURL = &env.APIURL
	}
	if env.APIToken != "" {
		c.APIToken = &env.APIToken
	}
	if env.RequestTimeout != 0 {
		c.RequestTimeout = &duration{d: env.RequestTimeout}
	}
	if env.FabricRC != "" {
		c.FabricRC = &env.FabricRC
	}
	if env.TokenFile != "" {
		c.TokenFile = &env.TokenFile
	}
	if env.FabricToken != "" {
		c.fabricToken = &env.FabricToken
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port != nil && (*c.Port <= 0 || *c.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got %d", *c.Port)
	}
	if c.APIURL != nil {
		u, err := url.Parse(*c.APIURL)
		if err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api_url must be an absolute http(s) URL, got %q", *c.APIURL)
		}
	}
	if c.RequestTimeout != nil && c.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout.Duration())
	}
	if c.RequestTimeout != nil && c.RequestTimeout.Duration() > 10*time.Minute {
		return fmt.Errorf("request_timeout must not exceed 10m, got %v", c.RequestTimeout.Duration())
	}
	return nil
}

// TokenSource names where the default credential came from.
type TokenSource string

const (
	TokenNone        TokenSource = "none"
	TokenAPIToken    TokenSource = "api_token"
	TokenFile        TokenSource = "token_file"
	TokenFabricToken TokenSource = "fabric_token"
)

// Settings is Config with defaults applied and the default credential
// resolved.
type Settings struct {
	Port           int
	APIURL         string
	RequestTimeout time.Duration
	DefaultToken   string
	TokenSource    TokenSource
}

// Settings resolves c into concrete values. The default credential is
// api_token, else the token file, else FABRIC_TOKEN. Values from fabric_rc
// are used only where the process environment and config file say nothing.
func (c Config) Settings() (Settings, error) {
	s := Settings{
		Port:           DefaultPort,
		APIURL:         backend.DefaultBaseURL,
		RequestTimeout: backend.DefaultTimeout,
		TokenSource:    TokenNone,
	}
	if c.Port != nil {
		s.Port = *c.Port
	}
	if c.APIURL != nil {
		s.APIURL = *c.APIURL
	}
	if c.RequestTimeout != nil {
		s.RequestTimeout = c.RequestTimeout.Duration()
	}

	if c.APIToken != nil && strings.TrimSpace(*c.APIToken) != "" {
		s.DefaultToken, s.TokenSource = strings.TrimSpace(*c.APIToken), TokenAPIToken
		return s, nil
	}

	var rc map[string]string
	if c.FabricRC != nil && *c.FabricRC != "" {
		vars, err := LoadRC(*c.FabricRC)
		if err != nil {
			return Settings{}, err
		}
		rc = vars
	}

	tokenFile := rc["FABRIC_TOKEN_LOCATION"]
	if c.TokenFile != nil && *c.TokenFile != "" {
		tokenFile = *c.TokenFile
	}
	if tokenFile != "" {
		token, err := ReadTokenFile(tokenFile)
		if err != nil {
			return Settings{}, err
		}
		s.DefaultToken, s.TokenSource = token, TokenFile
		return s, nil
	}

	fabricToken := rc["FABRIC_TOKEN"]
	if c.fabricToken != nil {
		fabricToken = *c.fabricToken
	}
	if t := strings.TrimSpace(fabricToken); t != "" {
		s.DefaultToken, s.TokenSource = t, TokenFabricToken
	}
	return s, nil
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName, configFileName)
}
