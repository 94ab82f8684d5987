package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UserSettings are persistent preferences merged under CLI flags.
type UserSettings struct {
	// Composite cache
	CacheDir        string `json:"cacheDir"`
	CacheMaxEntries int    `json:"cacheMaxEntries"`

	// Pipeline defaults
	DefaultRadiusM int `json:"defaultRadiusM"`
	DefaultFPS     int `json:"defaultFps"`
	DefaultWidth   int `json:"defaultWidth"`

	// External encoder override; probed from the system when empty
	FFmpegPath string `json:"ffmpegPath,omitempty"`

	// Anonymous usage telemetry, off unless explicitly enabled
	TelemetryEnabled bool   `json:"telemetryEnabled"`
	InstallID        string `json:"installId,omitempty"`
}

// DefaultSettings returns the defaults applied on first run.
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	return &UserSettings{
		CacheDir:        filepath.Join(homeDir, ".earth-timelapse", "cache"),
		CacheMaxEntries: 1024,
		DefaultRadiusM:  6000,
		DefaultFPS:      10,
		DefaultWidth:    768,
	}
}

// SettingsPath returns the settings file location.
func SettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".earth-timelapse", "settings.json")
}

// LoadSettings reads settings from the given path ("" selects the default
// location), merging defaults for any missing fields.
func LoadSettings(path string) (*UserSettings, error) {
	if path == "" {
		path = SettingsPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	defaults := DefaultSettings()
	if settings.CacheDir == "" {
		settings.CacheDir = defaults.CacheDir
	}
	if settings.CacheMaxEntries == 0 {
		settings.CacheMaxEntries = defaults.CacheMaxEntries
	}
	if settings.DefaultRadiusM == 0 {
		settings.DefaultRadiusM = defaults.DefaultRadiusM
	}
	if settings.DefaultFPS == 0 {
		settings.DefaultFPS = defaults.DefaultFPS
	}
	if settings.DefaultWidth == 0 {
		settings.DefaultWidth = defaults.DefaultWidth
	}

	return &settings, nil
}

// SaveSettings writes settings to the given path ("" selects the default
// location).
func SaveSettings(settings *UserSettings, path string) error {
	if path == "" {
		path = SettingsPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// EnsureInstallID lazily assigns the anonymous id used for telemetry.
// Nothing is generated or persisted while telemetry stays disabled.
func (s *UserSettings) EnsureInstallID(path string) (string, error) {
	if s.InstallID != "" {
		return s.InstallID, nil
	}
	s.InstallID = uuid.NewString()
	if err := SaveSettings(s, path); err != nil {
		return "", err
	}
	return s.InstallID, nil
}
