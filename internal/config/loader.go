package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

// newValidator reports fields by their YAML path (server.port) instead of Go names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// envOverride maps one environment variable onto the configuration.
// Overrides are applied after every file and win over them.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"TASKCAST_HOST", func(cfg *Config, v string) error { cfg.Server.Host = v; return nil }},
	{"TASKCAST_PORT", func(cfg *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not a port number: %q", v)
		}
		cfg.Server.Port = port
		return nil
	}},
	{"TASKCAST_LOG_LEVEL", func(cfg *Config, v string) error { cfg.Server.LogLevel = v; return nil }},
	{"TASKCAST_DB_PATH", func(cfg *Config, v string) error { cfg.Database.Path = v; return nil }},
	{"TASKCAST_NGROK_AUTHTOKEN", func(cfg *Config, v string) error { cfg.Tunnel.AuthToken = v; return nil }},
}

// searchPaths returns the config file locations, lowest priority first:
// /etc/taskcast/taskcast.yaml < ~/.config/taskcast/taskcast.yaml < ./taskcast.yaml < $TASKCAST_CONFIG
func searchPaths() []string {
	paths := []string{"/etc/taskcast/taskcast.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskcast", "taskcast.yaml"))
	}
	paths = append(paths, "taskcast.yaml")
	if envPath := os.Getenv("TASKCAST_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}
	return paths
}

// Load layers every file found on the search path over the defaults.
func Load() (*Config, error) {
	return load(searchPaths()...)
}

// LoadFromFile layers a single file over the defaults. A missing file is not an error.
func LoadFromFile(path string) (*Config, error) {
	return load(path)
}

func load(paths ...string) (*Config, error) {
	cfg := Defaults()

	for _, path := range paths {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	return cfg, nil
}

// mergeFile decodes path over cfg. Keys absent from the file keep their value;
// unknown keys are rejected so typos do not pass silently.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("environment %s: %w", o.name, err)
		}
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// validateConfig checks struct tags first, then the rules that span sections.
// Every problem found is reported, not just the first.
func validateConfig(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if cfg.Server.Host == "0.0.0.0" {
		errs = append(errs, errors.New("server.host must not be 0.0.0.0, bind to localhost and use a reverse proxy or the tunnel for external access"))
	}
	if cfg.Tunnel.Enabled && cfg.Tunnel.AuthToken == "" {
		errs = append(errs, errors.New("tunnel.authtoken is required when the tunnel is enabled (or set TASKCAST_NGROK_AUTHTOKEN)"))
	}
	if cfg.MCP.Enabled && cfg.MCP.Route == cfg.Tasks.Route {
		errs = append(errs, fmt.Errorf("mcp.route and tasks.route must differ, both are %q", cfg.MCP.Route))
	}

	return errors.Join(errs...)
}

// fieldError renders a validator failure as "<yaml path>: <rule>".
func fieldError(fe validator.FieldError) error {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest // drop the root struct name
	}

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", path)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", path, fe.Param(), fe.Value())
	case "startswith":
		return fmt.Errorf("%s must start with %q, got %v", path, fe.Param(), fe.Value())
	case "gt", "gte", "lt", "lte":
		return fmt.Errorf("%s must be %s %s, got %v", path, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation (value %v)", path, fe.Tag(), fe.Value())
	}
}
