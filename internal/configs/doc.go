// Package configs manages locker configuration and filesystem locations.
//
// Configuration is stored in TOML format at <UserConfigDir>/locker/config.toml:
//
//	[vault]
//	data_dir = "/home/me/.local/share/locker"
//	kdf_iterations = 600000
//	chunk_size = 65536
//	min_password_length = 12
//	rotation_retries = 2
//	parallelism = 4
//	lock_timeout_seconds = 2
//
//	[logging]
//	log_to_file = true
//	max_size_mb = 5
//	max_backups = 3
//	max_age_days = 30
//
// A missing file means defaults. Validate refuses KDF work factors below
// 600,000 iterations.
//
// # Settings
//
// ResolveSettings turns a Config into concrete paths. The data directory is
// chosen in this order:
//
//  1. The LOCKER_DATA_DIR environment variable
//  2. vault.data_dir from the config file
//  3. $XDG_DATA_HOME/locker (or ~/.local/share/locker)
//
// Inside the data directory live locker.db, vault_storage/, locker.log and
// audit.jsonl.
package configs
