package configs

import (
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/secrets"
)

const (
	// DefaultKDFIterations is the PBKDF2 work factor for new vaults.
	DefaultKDFIterations = 600_000

	// MinKDFIterations is the lowest work factor a config file may request.
	MinKDFIterations = 600_000

	// DefaultChunkSize is the plaintext size of each encrypted record.
	DefaultChunkSize = 64 * 1024

	// MaxChunkSize is the largest chunk the file format allows.
	MaxChunkSize = secrets.MaxChunkSize

	// DefaultMinPasswordLength is the shortest accepted master password.
	DefaultMinPasswordLength = 12

	// MinMinPasswordLength is the lowest password minimum a config file may set.
	MinMinPasswordLength = 8

	// DefaultRotationRetries is how often a file that hit an I/O error is
	// retried during key rotation.
	DefaultRotationRetries = 2

	// DefaultParallelism bounds concurrent per-file work.
	DefaultParallelism = 4

	// DefaultLockTimeoutSeconds is how long to wait for another process to
	// release the vault database.
	DefaultLockTimeoutSeconds = 2
)

// Config is the contents of config.toml.
type Config struct {
	Vault   VaultConfig   `toml:"vault"`
	Logging LoggingConfig `toml:"logging"`
}

type VaultConfig struct {
	// DataDir overrides where the database, storage directory and logs live.
	DataDir            string `toml:"data_dir,omitempty"`
	KDFIterations      int    `toml:"kdf_iterations"`
	ChunkSize          int    `toml:"chunk_size"`
	MinPasswordLength  int    `toml:"min_password_length"`
	RotationRetries    int    `toml:"rotation_retries"`
	Parallelism        int    `toml:"parallelism"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

type LoggingConfig struct {
	LogToFile  bool `toml:"log_to_file"`
	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			KDFIterations:      DefaultKDFIterations,
			ChunkSize:          DefaultChunkSize,
			MinPasswordLength:  DefaultMinPasswordLength,
			RotationRetries:    DefaultRotationRetries,
			Parallelism:        DefaultParallelism,
			LockTimeoutSeconds: DefaultLockTimeoutSeconds,
		},
		Logging: LoggingConfig{
			LogToFile:  true,
			MaxSizeMB:  5,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// LockTimeout returns the database lock timeout as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Vault.LockTimeoutSeconds) * time.Second
}

// LoadConfig reads the config file at path. A missing file yields the
// defaults. Values absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes the config file at path.
func SaveConfig(path string, config *Config) error {
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate rejects settings that would weaken the vault or break the file format.
func (c *Config) Validate() error {
	if c.Vault.KDFIterations < MinKDFIterations {
		return fmt.Errorf("%w: kdf_iterations must be at least %d, got %d", kerrors.ErrInvalidConfig, MinKDFIterations, c.Vault.KDFIterations)
	}
	if c.Vault.ChunkSize < 1 || c.Vault.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk_size must be between 1 and %d, got %d", kerrors.ErrInvalidConfig, MaxChunkSize, c.Vault.ChunkSize)
	}
	if c.Vault.MinPasswordLength < MinMinPasswordLength {
		return fmt.Errorf("%w: min_password_length must be at least %d, got %d", kerrors.ErrInvalidConfig, MinMinPasswordLength, c.Vault.MinPasswordLength)
	}
	if c.Vault.RotationRetries < 0 {
		return fmt.Errorf("%w: rotation_retries cannot be negative", kerrors.ErrInvalidConfig)
	}
	if c.Vault.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", kerrors.ErrInvalidConfig)
	}
	if c.Vault.LockTimeoutSeconds < 1 {
		return fmt.Errorf("%w: lock_timeout_seconds must be at least 1", kerrors.ErrInvalidConfig)
	}
	return nil
}
