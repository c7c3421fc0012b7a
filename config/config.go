// Package config provides configuration loading for hwci.
//
// Configuration comes from one YAML file, by default config.yaml inside the
// home directory ($HWCI_HOME, or ~/.hwci). Default supplies every value; the
// file only needs to name what differs. ${VAR} references in paths are
// expanded from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/script"
	"gopkg.in/yaml.v3"
)

// HomeEnv names the environment variable which overrides the home directory.
const HomeEnv = "HWCI_HOME"

// FileName is the default config file name inside the home directory.
const FileName = "config.yaml"

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete hwci configuration.
type Config struct {
	// Home holds the queue, the lock and the build folders.
	Home string `yaml:"home"`

	CI CIConfig `yaml:"ci"`

	Tests TestsConfig `yaml:"tests"`

	// Scripts are the hardware scripts by name.
	Scripts map[string]script.Definition `yaml:"scripts"`

	Camera CameraConfig `yaml:"camera"`
}

// CIConfig configures the build worker.
type CIConfig struct {
	// RepositoryURL is the repository built by manual builds.
	RepositoryURL string `yaml:"repository_url"`
	// Branch of manual builds.
	Branch string `yaml:"branch"`
	// TestSuite runs after a successful flash.
	TestSuite string `yaml:"test_suite"`
	// Bitfile is the glob locating the bitstream inside the clone.
	// Default: **/*.bit
	Bitfile string `yaml:"bitfile"`
	// FlashScript is the script which writes the bitstream to the FPGA.
	// Default: flash
	FlashScript  string   `yaml:"flash_script"`
	FlashTimeout Duration `yaml:"flash_timeout"`
	// PollInterval bounds the wait for new requests.
	PollInterval Duration `yaml:"poll_interval"`
	// StaleLockAge is the age after which a lock without a live holder may
	// be force-released.
	StaleLockAge Duration `yaml:"stale_lock_age"`
	// KeepClone keeps the cloned source inside the build folder.
	KeepClone bool `yaml:"keep_clone"`
}

// TestsConfig configures the test pipeline.
type TestsConfig struct {
	// Suites maps suite names to ordered test names.
	Suites map[string][]string `yaml:"suites"`
}

// CameraConfig selects the hardware session.
type CameraConfig struct {
	// Class is the session class. Default: script
	Class string `yaml:"class"`
}

// DefaultHome returns $HWCI_HOME, or ~/.hwci.
func DefaultHome() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".hwci"
	}
	return filepath.Join(userHome, ".hwci")
}

// DefaultPath returns the config file path inside the default home.
func DefaultPath() string {
	return filepath.Join(DefaultHome(), FileName)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Home: DefaultHome(),
		CI: CIConfig{
			Branch:       "main",
			TestSuite:    "smoke",
			Bitfile:      "**/*.bit",
			FlashScript:  "flash",
			FlashTimeout: Duration(5 * time.Minute),
			PollInterval: Duration(5 * time.Second),
			StaleLockAge: Duration(6 * time.Hour),
		},
		Tests: TestsConfig{
			Suites: map[string][]string{
				"smoke": {"mock", "loaded_scripts"},
			},
		},
		Scripts: map[string]script.Definition{},
		Camera: CameraConfig{
			Class: camera.ClassScript,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Home = expandPath(c.Home)
	for name, def := range c.Scripts {
		def.Path = expandPath(def.Path)
		def.Fallback = expandPath(def.Fallback)
		c.Scripts[name] = def
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Home == "" {
		errs = append(errs, errors.New("home must be set"))
	}
	if c.CI.PollInterval <= 0 {
		errs = append(errs, errors.New("ci.poll_interval must be positive"))
	}
	if c.CI.FlashTimeout <= 0 {
		errs = append(errs, errors.New("ci.flash_timeout must be positive"))
	}
	if c.CI.StaleLockAge <= 0 {
		errs = append(errs, errors.New("ci.stale_lock_age must be positive"))
	}
	if c.CI.Bitfile == "" {
		errs = append(errs, errors.New("ci.bitfile must be set"))
	}
	if c.CI.FlashScript == "" {
		errs = append(errs, errors.New("ci.flash_script must be set"))
	}
	if _, err := camera.Lookup(c.Camera.Class); err != nil {
		errs = append(errs, fmt.Errorf("camera.class: %w", err))
	}
	return errors.Join(errs...)
}

// BuildsDir returns the directory holding one folder per build.
func (c *Config) BuildsDir() string {
	return filepath.Join(c.Home, "builds")
}
