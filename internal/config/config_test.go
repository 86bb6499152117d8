package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Timezone:       "America/New_York",
		OpenDays:       []string{"Friday", "Saturday"},
		ShiftStartHour: 21,
		AutoPostHour:   12,
		Roles: []Role{
			{Name: "Active Manager", Emoji: "1️⃣"},
			{Name: "Backup Manager", Emoji: "2️⃣"},
			{Name: "Bouncer", Emoji: "3️⃣"},
			{Name: "Bartender", Emoji: "4️⃣"},
			{Name: "Dancer", Emoji: "5️⃣"},
			{Name: "DJ", Emoji: "6️⃣"},
		},
		ManagerRoles:      []string{"Active Manager", "Backup Manager"},
		SupervisorTargets: []string{"@Head Manager", "@Manager"},
		EventCreatorRoles: []string{"Admin", "Head Manager"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing timezone",
			mutate:  func(c *Config) { c.Timezone = "" },
			wantErr: "validation failed",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: "invalid timezone",
		},
		{
			name:    "bad open day",
			mutate:  func(c *Config) { c.OpenDays = []string{"Friday", "Caturday"} },
			wantErr: "invalid open day",
		},
		{
			name:    "no open days",
			mutate:  func(c *Config) { c.OpenDays = nil },
			wantErr: "validation failed",
		},
		{
			name:    "hour out of range",
			mutate:  func(c *Config) { c.ShiftStartHour = 24 },
			wantErr: "validation failed",
		},
		{
			name:    "duplicate role",
			mutate:  func(c *Config) { c.Roles = append(c.Roles, Role{Name: "dj"}) },
			wantErr: "duplicate role",
		},
		{
			name:    "unknown manager role",
			mutate:  func(c *Config) { c.ManagerRoles = []string{"Owner"} },
			wantErr: "manager role",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Backend = StoragePostgres },
			wantErr: "validation failed",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: "validation failed",
		},
		{
			name:    "gmail without user",
			mutate:  func(c *Config) { c.Messenger.Kind = MessengerGmail },
			wantErr: "validation failed",
		},
		{
			name:    "title format with two verbs",
			mutate:  func(c *Config) { c.ShiftTitleFormat = "%s %s" },
			wantErr: "shiftTitleFormat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_GmailMessenger(t *testing.T) {
	cfg := validConfig()
	cfg.Messenger = MessengerConfig{
		Kind:             MessengerGmail,
		GmailUserID:      "me",
		SignupRecipients: []string{"crew@example.com"},
		StaffRecipients:  []string{"managers@example.com"},
	}
	assert.NoError(t, Validate(cfg))

	cfg.Messenger.StaffRecipients = []string{"not-an-email"}
	assert.Error(t, Validate(cfg))
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "shift_config.test.yaml")

	content := `timezone: Europe/London
openDays: [Friday, saturday]
shiftStartHour: 21
autoPostHour: 12
autoPostWindow: 15m
roles:
  - name: Active Manager
    emoji: "1️⃣"
  - name: Backup Manager
    emoji: "2️⃣"
  - name: DJ
    emoji: "6️⃣"
managerRoles: [Active Manager, Backup Manager]
supervisorTargets: ["@Head Manager"]
eventCreatorRoles: [Admin]
targets:
  DJ: "@DJ"
storage:
  dataDir: /tmp/shifts
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Location().String())
	assert.Equal(t, 15*time.Minute, cfg.AutoPostWindow)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval)
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, DefaultShiftTitleFormat, cfg.ShiftTitleFormat)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/shifts", cfg.Storage.DataDir)
	assert.Equal(t, MessengerConsole, cfg.Messenger.Kind)
	assert.Equal(t, []string{"Active Manager", "Backup Manager", "DJ"}, cfg.RoleNames())
	assert.Equal(t, "@DJ", cfg.Targets["DJ"])
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "shift_config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("timezone: [unclosed"), 0644))

	_, err := LoadFromPath(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/shift_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_RoleHelpers(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Validate(cfg))

	name, ok := cfg.CanonicalRole("  dj ")
	assert.True(t, ok)
	assert.Equal(t, "DJ", name)

	_, ok = cfg.CanonicalRole("Juggler")
	assert.False(t, ok)

	assert.Equal(t, "3️⃣", cfg.RoleEmoji("Bouncer"))
	assert.True(t, cfg.IsManagerRole("backup manager"))
	assert.False(t, cfg.IsManagerRole("DJ"))
}

func TestConfig_OpenDays(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.IsOpenDay(time.Friday))
	assert.True(t, cfg.IsOpenDay(time.Saturday))
	assert.False(t, cfg.IsOpenDay(time.Monday))

	days, err := cfg.OpenWeekdays()
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestConfig_HasEventPermission(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.HasEventPermission([]string{"Bouncer", "admin"}))
	assert.False(t, cfg.HasEventPermission([]string{"Bouncer"}))
	assert.False(t, cfg.HasEventPermission(nil))
}

func TestLoadOAuthClient_ExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "client.json")
	content := `{"installed":{
		"client_id":"id.apps.googleusercontent.com",
		"project_id":"shifts",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url":"https://www.googleapis.com/oauth2/v1/certs",
		"client_secret":"secret",
		"redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := validConfig()
	cfg.Messenger.OAuthClientFile = path

	client, err := LoadOAuthClient(cfg, "test")
	require.NoError(t, err)
	assert.Equal(t, "shifts", client.Installed.ProjectID)
}

func TestValidateOAuthClient_InvalidURL(t *testing.T) {
	cfg := &OAuthClientConfig{
		Installed: OAuthInstalled{
			ClientID:                "test-client-id",
			ProjectID:               "test-project",
			AuthURI:                 "not-a-valid-url",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
			ClientSecret:            "test-secret",
			RedirectURIs:            []string{"http://localhost"},
		},
	}

	err := ValidateOAuthClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
