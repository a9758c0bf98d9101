package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mattjoyce/rollcall/internal/clock"
)

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if _, err := clock.LoadLocation(cfg.Service.Timezone); err != nil {
		return fmt.Errorf("service.timezone %q: %v", cfg.Service.Timezone, err)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := cfg.Service.LogFormat; f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", f)
	}
	// Triggers match on wall-clock minutes, so a slower tick could skip one.
	if cfg.Service.TickInterval <= 0 || cfg.Service.TickInterval > time.Minute {
		return fmt.Errorf("service.tick_interval must be positive and at most 1m (got %s)", cfg.Service.TickInterval)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1..65535 (got %d)", cfg.Server.Port)
	}
	if err := checkResolved("server.auth.api_key", cfg.Server.Auth.APIKey); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(cfg.Roster.Path) == "" {
		return fmt.Errorf("roster.path is required")
	}
	if strings.TrimSpace(cfg.Report.OutputDir) == "" {
		return fmt.Errorf("report.output_dir is required")
	}

	if cfg.Retention.MaxRows < 1 {
		return fmt.Errorf("retention.max_rows must be at least 1 (got %d)", cfg.Retention.MaxRows)
	}
	if err := checkClock("retention", cfg.Retention.Hour, cfg.Retention.Minute); err != nil {
		return err
	}
	if err := checkClock("schedule.report", cfg.Schedule.Report.Hour, cfg.Schedule.Report.Minute); err != nil {
		return err
	}
	if err := checkClock("schedule.email", cfg.Schedule.Email.Hour, cfg.Schedule.Email.Minute); err != nil {
		return err
	}
	days, err := ParseWeekdays(cfg.Schedule.Email.Days)
	if err != nil {
		return fmt.Errorf("schedule.email.days: %v", err)
	}
	if len(days) == 0 {
		return fmt.Errorf("schedule.email.days must list at least one weekday")
	}

	for name, spec := range map[string]string{
		"retention":       cfg.Retention.Cron(),
		"schedule.report": cfg.Schedule.Report.Cron(),
		"schedule.email":  cfg.Schedule.Email.Cron(),
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: cron expression %q: %v", name, spec, err)
		}
	}

	if cfg.Email.Timeout <= 0 {
		return fmt.Errorf("email.timeout must be positive")
	}
	if err := checkResolved("email.sendgrid_api_key", cfg.Email.SendGridAPIKey); err != nil {
		return err
	}
	return nil
}

func checkClock(section string, hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%s.hour must be 0..23 (got %d)", section, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%s.minute must be 0..59 (got %d)", section, minute)
	}
	return nil
}

// checkResolved rejects values still holding a ${VAR} placeholder.
func checkResolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
