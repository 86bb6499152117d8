package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAutoPostWindow   = 10 * time.Minute
	DefaultCheckInterval    = 10 * time.Minute
	DefaultHistoryLimit     = 100
	DefaultShiftTitleFormat = "🍸 %s Night Shift"
	DefaultDataDir          = "data"

	StorageFile     = "file"
	StoragePostgres = "postgres"

	MessengerConsole = "console"
	MessengerGmail   = "gmail"
)

// Role is a signup role shown on every shift
type Role struct {
	Name  string `yaml:"name" validate:"required"`
	Emoji string `yaml:"emoji,omitempty"`
}

// StorageConfig selects where the shift collections are kept
type StorageConfig struct {
	Backend     string `yaml:"backend,omitempty" validate:"omitempty,oneof=file postgres"`
	DataDir     string `yaml:"dataDir,omitempty"`
	PostgresURL string `yaml:"postgresURL,omitempty" validate:"required_if=Backend postgres"`
}

// MessengerConfig selects how posts, reminders and alerts are delivered
type MessengerConfig struct {
	Kind             string   `yaml:"kind,omitempty" validate:"omitempty,oneof=console gmail"`
	OAuthClientFile  string   `yaml:"oauthClientFile,omitempty"`
	TokenFile        string   `yaml:"tokenFile,omitempty"`
	GmailUserID      string   `yaml:"gmailUserID,omitempty" validate:"required_if=Kind gmail"`
	GmailSender      string   `yaml:"gmailSender,omitempty"`
	SignupRecipients []string `yaml:"signupRecipients,omitempty" validate:"required_if=Kind gmail,dive,email"`
	StaffRecipients  []string `yaml:"staffRecipients,omitempty" validate:"required_if=Kind gmail,dive,email"`
}

// Config represents the application configuration
type Config struct {
	Timezone          string            `yaml:"timezone" validate:"required"`
	OpenDays          []string          `yaml:"openDays" validate:"required,min=1,dive,required"`
	ShiftStartHour    int               `yaml:"shiftStartHour" validate:"min=0,max=23"`
	AutoPostHour      int               `yaml:"autoPostHour" validate:"min=0,max=23"`
	AutoPostWindow    time.Duration     `yaml:"autoPostWindow,omitempty" validate:"min=0,max=1h"`
	CheckInterval     time.Duration     `yaml:"checkInterval,omitempty" validate:"min=0"`
	HistoryLimit      int               `yaml:"historyLimit,omitempty" validate:"min=0"`
	ShiftTitleFormat  string            `yaml:"shiftTitleFormat,omitempty"`
	Roles             []Role            `yaml:"roles" validate:"required,min=1,dive"`
	ManagerRoles      []string          `yaml:"managerRoles,omitempty"`
	SupervisorTargets []string          `yaml:"supervisorTargets,omitempty"`
	EventCreatorRoles []string          `yaml:"eventCreatorRoles,omitempty"`
	Targets           map[string]string `yaml:"targets,omitempty"`
	Storage           StorageConfig     `yaml:"storage,omitempty"`
	Messenger         MessengerConfig   `yaml:"messenger,omitempty"`

	location *time.Location
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

var weekdays = map[string]rrule.Weekday{
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
	"sunday":    rrule.SU,
}

// LoadWithEnv loads and validates shift_config.<env>.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in every optional field left empty
func (c *Config) ApplyDefaults() {
	if c.AutoPostWindow == 0 {
		c.AutoPostWindow = DefaultAutoPostWindow
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.ShiftTitleFormat == "" {
		c.ShiftTitleFormat = DefaultShiftTitleFormat
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = DefaultDataDir
	}
	if c.Messenger.Kind == "" {
		c.Messenger.Kind = MessengerConsole
	}
}

// Validate validates the configuration struct and the fields tags cannot express
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	openDays, err := cfg.OpenWeekdays()
	if err != nil {
		return err
	}
	// The generator expands open days through an RRULE, so make sure one can be built
	if _, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: openDays,
		Byhour:    []int{cfg.ShiftStartHour},
		Dtstart:   time.Date(2000, 1, 3, 0, 0, 0, 0, loc),
	}); err != nil {
		return fmt.Errorf("invalid open days: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Roles))
	for _, role := range cfg.Roles {
		key := strings.ToLower(role.Name)
		if seen[key] {
			return fmt.Errorf("duplicate role %q", role.Name)
		}
		seen[key] = true
	}

	for _, name := range cfg.ManagerRoles {
		if _, ok := cfg.CanonicalRole(name); !ok {
			return fmt.Errorf("manager role %q is not a configured role", name)
		}
	}

	if strings.Count(cfg.ShiftTitleFormat, "%s") > 1 {
		return fmt.Errorf("shiftTitleFormat may contain at most one %%s")
	}

	cfg.location = loc
	return nil
}

// Location returns the configured timezone. Falls back to UTC if the
// config was never validated and the name does not load.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OpenWeekdays returns the open days as RRULE weekdays
func (c *Config) OpenWeekdays() ([]rrule.Weekday, error) {
	days := make([]rrule.Weekday, 0, len(c.OpenDays))
	for _, name := range c.OpenDays {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("invalid open day %q", name)
		}
		days = append(days, day)
	}
	return days, nil
}

// IsOpenDay reports whether shifts normally run on day
func (c *Config) IsOpenDay(day time.Weekday) bool {
	for _, name := range c.OpenDays {
		if strings.EqualFold(strings.TrimSpace(name), day.String()) {
			return true
		}
	}
	return false
}

// RoleNames returns the configured role names in display order
func (c *Config) RoleNames() []string {
	names := make([]string, len(c.Roles))
	for i, role := range c.Roles {
		names[i] = role.Name
	}
	return names
}

// CanonicalRole resolves name case-insensitively to a configured role name
func (c *Config) CanonicalRole(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, role := range c.Roles {
		if strings.EqualFold(role.Name, name) {
			return role.Name, true
		}
	}
	return "", false
}

// RoleEmoji returns the emoji shown next to a role
func (c *Config) RoleEmoji(name string) string {
	for _, role := range c.Roles {
		if role.Name == name {
			return role.Emoji
		}
	}
	return ""
}

// IsManagerRole reports whether role is one of the supervisory roles
func (c *Config) IsManagerRole(role string) bool {
	return slices.ContainsFunc(c.ManagerRoles, func(m string) bool {
		return strings.EqualFold(m, role)
	})
}

// HasEventPermission reports whether a member holding memberRoles may
// create, cancel and edit events
func (c *Config) HasEventPermission(memberRoles []string) bool {
	for _, member := range memberRoles {
		for _, allowed := range c.EventCreatorRoles {
			if strings.EqualFold(strings.TrimSpace(member), allowed) {
				return true
			}
		}
	}
	return false
}

// findConfigFile searches for shift_config.<env>.yaml
func findConfigFile(env string) (string, error) {
	configFileName := "shift_config.yaml"
	if env != "" {
		configFileName = "shift_config." + env + ".yaml"
	}
	return locate(configFileName)
}

// locate looks for name in the current directory, then the user's home directory
func locate(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
