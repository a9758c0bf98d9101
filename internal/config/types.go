package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete rollcall configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Roster    RosterConfig    `yaml:"roster"`
	Report    ReportConfig    `yaml:"report"`
	Retention RetentionConfig `yaml:"retention"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Email     EmailConfig     `yaml:"email"`

	// SourceFile is the resolved path the config was loaded from.
	SourceFile string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Timezone     string        `yaml:"timezone"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// ServerConfig defines HTTP listener settings.
type ServerConfig struct {
	Host string           `yaml:"host"`
	Port int              `yaml:"port"`
	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig guards the admin routes. An empty APIKey leaves them open.
type ServerAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Listen returns the host:port address for the HTTP server.
func (s ServerConfig) Listen() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig defines ledger storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RosterConfig locates the authoritative host list (.xlsx or .csv).
type RosterConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet,omitempty"`
}

// ReportConfig defines where reports are written and which font paints them.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	FontDir   string `yaml:"font_dir,omitempty"`
	FontFile  string `yaml:"font_file,omitempty"`
	FontName  string `yaml:"font_name,omitempty"`
}

// RetentionConfig bounds the ledger size and sets when the collector runs.
type RetentionConfig struct {
	MaxRows int `yaml:"max_rows"`
	Hour    int `yaml:"hour"`
	Minute  int `yaml:"minute"`
}

// Cron returns the daily cron expression for the retention job.
func (r RetentionConfig) Cron() string {
	return DailyTrigger{Hour: r.Hour, Minute: r.Minute}.Cron()
}

// ScheduleConfig holds the report and email triggers.
type ScheduleConfig struct {
	Report DailyTrigger  `yaml:"report"`
	Email  WeeklyTrigger `yaml:"email"`
}

// DailyTrigger fires once a day at Hour:Minute.
type DailyTrigger struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

// Cron returns the standard five-field cron expression.
func (d DailyTrigger) Cron() string {
	return fmt.Sprintf("%d %d * * *", d.Minute, d.Hour)
}

// WeeklyTrigger fires at Hour:Minute on the listed weekdays (0=Sunday).
type WeeklyTrigger struct {
	Days   string `yaml:"days"`
	Hour   int    `yaml:"hour"`
	Minute int    `yaml:"minute"`
}

// Cron returns the standard five-field cron expression.
func (w WeeklyTrigger) Cron() string {
	days, err := ParseWeekdays(w.Days)
	if err != nil || len(days) == 0 {
		return fmt.Sprintf("%d %d * * %s", w.Minute, w.Hour, strings.TrimSpace(w.Days))
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%d %d * * %s", w.Minute, w.Hour, strings.Join(parts, ","))
}

// EmailConfig defines report delivery settings.
type EmailConfig struct {
	From           string        `yaml:"from"`
	Recipients     string        `yaml:"recipients"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RecipientList splits the comma-separated recipients, dropping blanks.
func (e EmailConfig) RecipientList() []string {
	var out []string
	for _, r := range strings.Split(e.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// ParseWeekdays parses a comma-separated list of weekday numbers (0=Sunday .. 6=Saturday).
func ParseWeekdays(days string) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	for _, raw := range strings.Split(days, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("weekday %q is not a number", raw)
		}
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday %d out of range 0..6 (0=Sunday)", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// Defaults returns a Config with the stock schedule and paths.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "rollcall",
			Timezone:     "Europe/Bucharest",
			LogLevel:     "info",
			LogFormat:    "json",
			TickInterval: 20 * time.Second,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3001,
		},
		Database: DatabaseConfig{
			Path: "./data/checkins.db",
		},
		Roster: RosterConfig{
			Path: "./data/hosts.xlsx",
		},
		Report: ReportConfig{
			OutputDir: "./data/reports",
			FontName:  "DejaVuSans",
		},
		Retention: RetentionConfig{
			MaxRows: 6000,
			Hour:    2,
			Minute:  0,
		},
		Schedule: ScheduleConfig{
			Report: DailyTrigger{Hour: 3, Minute: 0},
			Email:  WeeklyTrigger{Days: "2,3,4,5,6", Hour: 9, Minute: 0},
		},
		Email: EmailConfig{
			From:    "reports@em1391.cloud.trados.com",
			Timeout: 30 * time.Second,
		},
	}
}
