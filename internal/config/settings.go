package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the settings file name inside Dir().
const SettingsFile = "config.yaml"

// Allowed scheduler intervals and RAM thresholds.
var (
	Intervals     = []time.Duration{10 * time.Second, 18 * time.Second, 30 * time.Second, time.Minute, 5 * time.Minute}
	RAMThresholds = []int{75, 80, 85, 90, 95, 100}
)

// Defaults for every setting.
const (
	DefaultInterval        = 18 * time.Second
	DefaultRAMThreshold    = 80
	DefaultRetention       = 48 * time.Hour
	DefaultHistoryWindow   = 12 * time.Hour
	DefaultGreedyThreshold = 3
	DefaultSettleDelay     = 2 * time.Second
	DefaultBootDelay       = 5 * time.Second
	DefaultRootCommand     = "su"
	DefaultBrokerCommand   = "rish"
	DefaultStatusAddr      = "127.0.0.1:7391"
)

// RAMGate configures the memory-pressure precondition.
type RAMGate struct {
	Enabled   bool `yaml:"enabled"`
	Threshold int  `yaml:"threshold"`
}

// Settings is the user-editable daemon configuration.
type Settings struct {
	PeriodicEnabled bool          `yaml:"periodic_enabled"`
	Interval        time.Duration `yaml:"interval"`
	RAMGate         RAMGate       `yaml:"ram_gate"`
	KillOnScreenOff bool          `yaml:"kill_on_screen_off"`

	RootCommand   string `yaml:"root_command"`
	BrokerCommand string `yaml:"broker_command"`

	Retention       time.Duration `yaml:"retention"`
	HistoryWindow   time.Duration `yaml:"history_window"`
	GreedyThreshold int           `yaml:"greedy_threshold"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	BootDelay       time.Duration `yaml:"boot_delay"`

	StatusAddr string `yaml:"status_addr"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		PeriodicEnabled: true,
		Interval:        DefaultInterval,
		RAMGate:         RAMGate{Enabled: false, Threshold: DefaultRAMThreshold},
		RootCommand:     DefaultRootCommand,
		BrokerCommand:   DefaultBrokerCommand,
		Retention:       DefaultRetention,
		HistoryWindow:   DefaultHistoryWindow,
		GreedyThreshold: DefaultGreedyThreshold,
		SettleDelay:     DefaultSettleDelay,
		BootDelay:       DefaultBootDelay,
		StatusAddr:      DefaultStatusAddr,
	}
}

// Normalize replaces out-of-range values with their defaults.
func (s *Settings) Normalize() {
	if !containsDuration(Intervals, s.Interval) {
		s.Interval = DefaultInterval
	}
	if !containsInt(RAMThresholds, s.RAMGate.Threshold) {
		s.RAMGate.Threshold = DefaultRAMThreshold
	}
	if s.RootCommand == "" {
		s.RootCommand = DefaultRootCommand
	}
	if s.BrokerCommand == "" {
		s.BrokerCommand = DefaultBrokerCommand
	}
	if s.Retention <= 0 {
		s.Retention = DefaultRetention
	}
	if s.HistoryWindow <= 0 {
		s.HistoryWindow = DefaultHistoryWindow
	}
	if s.GreedyThreshold <= 0 {
		s.GreedyThreshold = DefaultGreedyThreshold
	}
	if s.SettleDelay < 0 {
		s.SettleDelay = DefaultSettleDelay
	}
	if s.BootDelay < 0 {
		s.BootDelay = DefaultBootDelay
	}
	if s.StatusAddr == "" {
		s.StatusAddr = DefaultStatusAddr
	}
}

// LoadSettings reads settings from path. Keys absent from the file keep
// their defaults. A missing file yields Defaults() without an error.
func LoadSettings(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("failed to parse %s: %w", path, err)
	}
	s.Normalize()
	return s, nil
}

// SaveSettings writes s to path, creating the parent directory.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// FileSource serves the current settings, re-reading the file whenever its
// modification time or size changes. A file that fails to parse leaves the
// previous settings in effect.
type FileSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	loaded  bool
	current Settings
	lastErr error
}

// NewFileSource creates a source for the settings file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, current: Defaults()}
}

// Path returns the settings file path.
func (f *FileSource) Path() string {
	return f.path
}

// Current returns the settings as of now.
func (f *FileSource) Current() Settings {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.current, f.loaded, f.lastErr = Defaults(), false, nil
			f.modTime, f.size = time.Time{}, 0
		}
		return f.current
	}

	if f.loaded && info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return f.current
	}

	s, err := LoadSettings(f.path)
	f.modTime, f.size, f.loaded = info.ModTime(), info.Size(), true
	f.lastErr = err
	if err == nil {
		f.current = s
	}
	return f.current
}

// Err returns the error from the most recent reload, if any.
func (f *FileSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func containsDuration(list []time.Duration, d time.Duration) bool {
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
