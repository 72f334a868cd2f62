package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/surfer/pkg/logging"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex

	logger = logging.NewWriterLogger("config", os.Stderr)
)

// ErrNotInitialized is returned by operations that need the global manager
// before Initialize has been called.
var ErrNotInitialized = errors.New("config not initialized: call config.Initialize first")

// SetLogger replaces the logger used for configuration warnings.
func SetLogger(l *logging.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	logger = l
}

// Initialize creates the global configuration manager from the file at
// configPath (JSON, or YAML by extension). An empty path uses
// ~/.surfer/config.json.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewDriverSection()); err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic(ErrNotInitialized.Error())
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetDriver returns the driver section from global config.
// Returns nil if config is not initialized.
func GetDriver() *DriverSection {
	if !IsInitialized() {
		return nil
	}

	section, ok := Global().GetSection(SectionIDDriver)
	if !ok {
		return nil
	}

	driverSection, ok := section.(*DriverSection)
	if !ok {
		return nil
	}
	return driverSection
}

// Configure applies recognized driver settings to the global config.
// Unknown keys are ignored.
func Configure(opts map[string]interface{}) error {
	section := GetDriver()
	if section == nil {
		return ErrNotInitialized
	}
	return section.SetData(opts)
}

// ConfigureWith applies driver settings from a flat YAML file to the global
// config. A missing or malformed file is logged and leaves the current
// settings untouched.
func ConfigureWith(path string) error {
	section := GetDriver()
	if section == nil {
		return ErrNotInitialized
	}
	section.LoadYAML(path)
	return nil
}

// LoadYAML applies settings from a flat YAML file such as
//
//	driver: remote
//	remote_host: http://grid:4444
//	remote_timeout: 60
//
// Problems reading or decoding the file are logged as warnings and the
// section keeps its current values.
func (s *DriverSection) LoadYAML(path string) {
	globalMu.Lock()
	log := logger
	globalMu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("YAML configuration file %s couldn't be found. Using defaults.", path)
		} else {
			log.Warnf("YAML configuration file %s couldn't be read: %v. Using defaults.", path, err)
		}
		return
	}

	var opts map[string]interface{}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		log.Warnf("YAML configuration file %s contains invalid syntax. Using defaults.", path)
		return
	}

	// Apply to a scratch section first so a bad value cannot leave a half
	// applied configuration behind.
	scratch := NewDriverSection()
	if err := scratch.SetData(s.Data()); err != nil {
		log.Warnf("failed to snapshot driver settings: %v", err)
		return
	}
	if err := scratch.SetData(opts); err != nil {
		log.Warnf("YAML configuration file %s has invalid values: %v. Using defaults.", path, err)
		return
	}
	if err := scratch.Validate(); err != nil {
		log.Warnf("YAML configuration file %s is invalid: %v. Using defaults.", path, err)
		return
	}

	if err := s.SetData(scratch.Data()); err != nil {
		log.Warnf("failed to apply %s: %v", path, err)
	}
}

// String summarizes the section for logs.
func (s *DriverSection) String() string {
	settings := s.Settings()
	return fmt.Sprintf("driver=%q remote_host=%q remote_timeout=%s window=%dx%d headless=%v",
		settings.Kind, settings.RemoteHost, settings.RemoteTimeout,
		settings.WindowWidth, settings.WindowHeight, settings.Headless)
}
