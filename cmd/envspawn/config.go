package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/envspawn/envspawn/launch"
)

// ErrDuplicateConfigFiles is returned when both .json and .jsonc config files
// exist at the same location.
var ErrDuplicateConfigFiles = errors.New("duplicate config files")

// defaultManifestName is the manifest file name resolved inside the worker
// directory when the config names none.
const defaultManifestName = "env"

// Config holds the controller configuration.
type Config struct {
	// WorkerDir overrides the ENVSPAWN_WORKER_PATH environment variable.
	WorkerDir string `json:"worker_dir,omitempty"`
	// Manifest is the environment manifest: an absolute path, or a name
	// resolved inside the worker directory. Defaults to "env".
	Manifest string `json:"manifest,omitempty"`
	// PauseMS is the best-effort pause after a foreground launch, for output
	// ordering only. Defaults to 100.
	PauseMS *int `json:"pause_ms,omitempty"`
	// LogFile enables the rotated launch log when set.
	LogFile string `json:"log_file,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		PauseMS: intPtr(100),
	}
}

func intPtr(n int) *int {
	return &n
}

// ManifestPath resolves the manifest location against environ. Relative
// manifest names live inside the worker directory, so resolution fails with
// the launcher's locator errors when the worker directory is unknown.
func (c *Config) ManifestPath(environ []string) (string, error) {
	if c.Manifest != "" && filepath.IsAbs(c.Manifest) {
		return c.Manifest, nil
	}

	dir, ok := launch.SnapshotSource(environ).Lookup(launch.WorkerDirVar)
	if !ok {
		return "", launch.ErrWorkerDirUnset
	}

	if dir == "" {
		return "", launch.ErrWorkerDirEmpty
	}

	name := c.Manifest
	if name == "" {
		name = defaultManifestName
	}

	return filepath.Join(dir, name), nil
}

// Pause returns the configured foreground pause.
func (c *Config) Pause() int {
	if c.PauseMS == nil {
		return 100
	}

	return *c.PauseMS
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	ConfigPath string   // --config flag value
	Environ    []string // environment (for XDG_CONFIG_HOME)
}

// LoadConfig loads configuration with the following precedence (later
// overrides earlier):
//  1. Built-in defaults
//  2. Global config: $XDG_CONFIG_HOME/envspawn/config.json or config.jsonc
//     (defaults to ~/.config/envspawn/) - always loaded if it exists
//  3. Project config OR --config path (not both):
//     - Without --config: .envspawn.json or .envspawn.jsonc in the cwd
//     - With --config: that path replaces the project config
//
// Both .json and .jsonc files support comments via tailscale/hujson. Both
// extensions present at one location is an error.
func LoadConfig(input LoadConfigInput) (Config, error) {
	cfg := DefaultConfig()

	globalBasePath, err := userConfigBasePath(input.Environ)
	if err != nil {
		return Config{}, err
	}

	if globalBasePath != "" {
		globalPath, findErr := findConfigFile(globalBasePath)
		if findErr == nil {
			globalCfg, loadErr := loadConfigFile(globalPath)
			if loadErr != nil {
				return Config{}, loadErr
			}

			cfg = mergeConfigs(&cfg, &globalCfg)
		} else if !errors.Is(findErr, os.ErrNotExist) {
			return Config{}, findErr
		}
	}

	if input.ConfigPath != "" {
		explicitCfg, err := loadConfigFile(input.ConfigPath)
		if err != nil {
			return Config{}, err
		}

		cfg = mergeConfigs(&cfg, &explicitCfg)

		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("cannot get working directory: %w", err)
	}

	projectPath, findErr := findConfigFile(filepath.Join(cwd, ".envspawn"))
	if findErr == nil {
		projectCfg, loadErr := loadConfigFile(projectPath)
		if loadErr != nil {
			return Config{}, loadErr
		}

		cfg = mergeConfigs(&cfg, &projectCfg)
	} else if !errors.Is(findErr, os.ErrNotExist) {
		return Config{}, findErr
	}

	return cfg, nil
}

// findConfigFile checks basePath with both .json and .jsonc extensions and
// returns an error if both exist.
func findConfigFile(basePath string) (string, error) {
	jsonPath := basePath + ".json"
	jsoncPath := basePath + ".jsonc"

	jsonExists, jsonErr := fileExists(jsonPath)
	if jsonErr != nil {
		return "", jsonErr
	}

	jsoncExists, jsoncErr := fileExists(jsoncPath)
	if jsoncErr != nil {
		return "", jsoncErr
	}

	if jsonExists && jsoncExists {
		return "", fmt.Errorf("%w: both %s and %s exist; remove one", ErrDuplicateConfigFiles, jsonPath, jsoncPath)
	}

	if jsonExists {
		return jsonPath, nil
	}

	if jsoncExists {
		return jsoncPath, nil
	}

	return "", os.ErrNotExist
}

// fileExists reports whether path exists and is not a directory.
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("checking file %s: %w", path, err)
	}

	return !info.IsDir(), nil
}

// loadConfigFile loads and parses a JSON/JSONC config file.
func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// mergeConfigs merges override into base; zero values in override do not
// override base values.
func mergeConfigs(base, override *Config) Config {
	result := *base

	if override.WorkerDir != "" {
		result.WorkerDir = override.WorkerDir
	}

	if override.Manifest != "" {
		result.Manifest = override.Manifest
	}

	if override.PauseMS != nil {
		result.PauseMS = override.PauseMS
	}

	if override.LogFile != "" {
		result.LogFile = override.LogFile
	}

	return result
}

// userConfigBasePath returns the global config base path without extension.
// Uses the provided environ for XDG_CONFIG_HOME instead of os.Getenv.
func userConfigBasePath(environ []string) (string, error) {
	xdg, ok := launch.SnapshotSource(environ).Lookup("XDG_CONFIG_HOME")
	if ok && xdg != "" {
		return filepath.Join(xdg, "envspawn", "config"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// No home, no global config; project config still works.
		return "", nil //nolint:nilerr
	}

	return filepath.Join(home, ".config", "envspawn", "config"), nil
}
