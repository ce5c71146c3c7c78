// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to stderr (or the writer given to SetOutput) when a terminal,
//     pipe, or file is connected
//   - Logs to systemd journal when journal = true and journald is present
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"engine": "debug", // Per-module overrides
//			"pool":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("pool").With("id", id)
//	logger.Info("Process started")  // Includes id in all logs
//
// Change a module level at runtime:
//
//	_ = logging.SetModuleLevel("engine", "debug")
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal enabled + output available → MultiHandler (both)
//	Journal enabled only               → JournalHandler
//	Output available only              → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service with journal output enabled:
//
//	journalctl -t procspawn              # All procspawn logs
//	journalctl -t procspawn -f           # Follow live
//	journalctl -t procspawn -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t procspawn MODULE=pool
//	journalctl -t procspawn ID=worker
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	journal = true
//
//	[logging.modules]
//	engine = "debug"
//	watch = "warn"
package logging
