package workflows

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PolarWolf314/locker/internal/configs"
	kerrors "github.com/PolarWolf314/locker/internal/errors"
	logger "github.com/PolarWolf314/locker/internal/logging"
	"github.com/PolarWolf314/locker/internal/store"
	"github.com/PolarWolf314/locker/internal/vault"
)

// Env is what every workflow needs from the CLI layer.
type Env struct {
	// ConfigPath is the config file to load. Empty means the default location.
	ConfigPath string

	// Log receives progress messages. When file logging is enabled in the
	// config, messages are also mirrored to the log file.
	Log logger.Logger
}

// opened is a vault opened for the duration of one workflow.
type opened struct {
	config   *configs.Config
	settings *configs.Settings
	vault    *vault.Vault
	log      logger.Logger
	logFile  io.Closer
}

// openVault loads the config, opens the database and constructs the vault.
// Interrupted rotations are resolved as part of opening.
func openVault(ctx context.Context, env Env) (*opened, error) {
	config, settings, err := loadSettings(env)
	if err != nil {
		return nil, err
	}

	if err := settings.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}

	o := &opened{config: config, settings: settings, log: env.Log}
	if config.Logging.LogToFile {
		w := logger.NewFileWriter(logger.FileOptions{
			Path:       settings.LogPath,
			MaxSizeMB:  config.Logging.MaxSizeMB,
			MaxBackups: config.Logging.MaxBackups,
			MaxAgeDays: config.Logging.MaxAgeDays,
		})
		o.log.File = w
		o.logFile = w
	}

	o.log.Debugf("Opening database at %s", settings.DatabasePath)
	st, err := store.Open(settings.DatabasePath, config.LockTimeout())
	if err != nil {
		o.closeLog()
		return nil, err
	}

	v, err := vault.New(ctx, st, vault.OptionsFromConfig(config, settings), o.log)
	if err != nil {
		_ = st.Close()
		o.closeLog()
		return nil, err
	}
	o.vault = v

	return o, nil
}

// loadSettings loads the config file and resolves the vault's paths.
func loadSettings(env Env) (*configs.Config, *configs.Settings, error) {
	configPath := env.ConfigPath
	if configPath == "" {
		var err error
		if configPath, err = configs.DefaultConfigPath(); err != nil {
			return nil, nil, err
		}
	}

	config, err := configs.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	settings, err := configs.ResolveSettings(configPath, config)
	if err != nil {
		return nil, nil, err
	}

	return config, settings, nil
}

func (o *opened) close() {
	if err := o.vault.Close(); err != nil {
		o.log.Warnf("Failed to close database: %v", err)
	}
	o.closeLog()
}

func (o *opened) closeLog() {
	if o.logFile != nil {
		_ = o.logFile.Close()
	}
}

// unlock opens the vault with the password.
func (o *opened) unlock(ctx context.Context, password string) error {
	o.log.Debugf("Deriving password key")
	if err := o.vault.UnlockWithPassword(ctx, password); err != nil {
		return err
	}
	o.log.Infof("Vault unlocked")
	return nil
}

// resolveFile finds a file by exact ID, exact name, or unique prefix of
// either. More than one match is ErrAmbiguousFile.
func resolveFile(ctx context.Context, v *vault.Vault, query string) (*store.FileRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty file name", kerrors.ErrFileNotFound)
	}

	files, err := v.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var exact, prefix []store.FileRecord
	for _, f := range files {
		switch {
		case f.ID == query || f.Name == query:
			exact = append(exact, f)
		case strings.HasPrefix(f.ID, query) || strings.HasPrefix(f.Name, query):
			prefix = append(prefix, f)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = prefix
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, query)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches %d files, use the file ID", kerrors.ErrAmbiguousFile, query, len(matches))
	}
}
