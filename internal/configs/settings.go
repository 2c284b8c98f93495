package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory, taking precedence over the config file.
const DataDirEnv = "LOCKER_DATA_DIR"

// Settings are the resolved filesystem locations of a vault.
type Settings struct {
	ConfigPath   string
	DataDir      string
	DatabasePath string
	StorageDir   string
	LogPath      string
	AuditPath    string
}

// DefaultConfigPath returns <UserConfigDir>/locker/config.toml.
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(configDir, "locker", "config.toml"), nil
}

// DefaultDataDir returns $XDG_DATA_HOME/locker, falling back to ~/.local/share/locker.
func DefaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "locker"), nil
}

// ResolveSettings works out every path for config. The environment override
// wins over the config file, which wins over the platform default.
func ResolveSettings(configPath string, config *Config) (*Settings, error) {
	dataDir := os.Getenv(DataDirEnv)
	if dataDir == "" {
		dataDir = config.Vault.DataDir
	}
	if dataDir == "" {
		var err error
		if dataDir, err = DefaultDataDir(); err != nil {
			return nil, err
		}
	}

	return &Settings{
		ConfigPath:   configPath,
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "locker.db"),
		StorageDir:   filepath.Join(dataDir, "vault_storage"),
		LogPath:      filepath.Join(dataDir, "locker.log"),
		AuditPath:    filepath.Join(dataDir, "audit.jsonl"),
	}, nil
}

// EnsureDirs creates the data and storage directories with owner-only permissions.
func (s *Settings) EnsureDirs() error {
	for _, dir := range []string{s.DataDir, s.StorageDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
