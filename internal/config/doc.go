// Package config loads the mbdeck configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/mbdeck/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// Missing config files are NOT an error, so the console works against a
// local simulator without any setup.
//
// # TOML Format
//
//	api_bind = "127.0.0.1:8080"        # simulator web API
//	reconnect_seconds = 5              # push channel cooldown, clamped to 1-60
//	history_limit = 100                # records fetched for the history view
//	log_file = "~/.local/state/mbdeck/mbdeck.log"
//	log_level = "info"                 # debug, info, warn, error
//
//	# Direct mode: talk Modbus TCP to the device instead of the web API.
//	direct_address = "192.168.1.50:502"
//	direct_unit_ids = [1, 2]           # 1-247; others are dropped
//	direct_timeout_seconds = 3
//
//	[direct_banks]                     # lengths read in direct mode
//	coils = 100
//	discrete_inputs = 100
//	holding_registers = 100
//	input_registers = 100
//
// Tilde expansion is performed for log_file. Bank lengths outside
// 1-65536 keep their default.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//
// Command-line flags and MBDECK_* environment variables override the file;
// that merge happens in cmd/mbdeck.
package config
