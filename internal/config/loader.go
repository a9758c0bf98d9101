package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration that must stop the process from starting.
var ErrConfig = errors.New("invalid configuration")

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, overrides and validates the config file at configPath.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.SourceFile = absPath
	return cfg, nil
}

// Parse decodes YAML onto Defaults, applies legacy environment overrides and validates.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	interpolated := interpolateEnv(string(data), lookup)
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrConfig, err)
	}

	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// FromEnv builds a config from Defaults plus environment overrides only.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	return Parse(nil, lookup)
}

func interpolateEnv(input string, lookup func(string) (string, bool)) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := lookup(varName); exists {
			return value
		}
		// Left in place so validation can name the missing variable.
		return match
	})
}

// applyEnvOverrides maps the flat environment variables of older deployments onto the config.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer (got %q)", key, v)
		}
		*dst = n
		return nil
	}

	str("SERVER_HOST", &cfg.Server.Host)
	str("DB_PATH", &cfg.Database.Path)
	str("EXCEL_FILE_PATH", &cfg.Roster.Path)
	str("PDF_OUTPUT_DIR", &cfg.Report.OutputDir)
	str("FONTS_DIRECTORY", &cfg.Report.FontDir)
	str("EMAIL_SCHEDULER_DAYS", &cfg.Schedule.Email.Days)
	str("EMAIL_RECIPIENTS", &cfg.Email.Recipients)
	str("SENDGRID_API_KEY", &cfg.Email.SendGridAPIKey)
	str("FROM_EMAIL", &cfg.Email.From)
	str("LOG_LEVEL", &cfg.Service.LogLevel)
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)

	for key, dst := range map[string]*int{
		"SERVER_PORT":            &cfg.Server.Port,
		"SCHEDULER_HOUR":         &cfg.Schedule.Report.Hour,
		"SCHEDULER_MINUTE":       &cfg.Schedule.Report.Minute,
		"EMAIL_SCHEDULER_HOUR":   &cfg.Schedule.Email.Hour,
		"EMAIL_SCHEDULER_MINUTE": &cfg.Schedule.Email.Minute,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}
