// Package sysutil holds small process-level helpers shared by the CLI
// commands: log level selection and environment flag parsing.
package sysutil

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the global zerolog level from LOG_LEVEL style values
// (debug, info, warn, error, fatal, panic; case-insensitive). Unknown values
// fall back to info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsTruthy reports whether an environment value means on:
// 1, true, yes, y or on, case-insensitive.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Version returns override when set, else the main module version stamped
// by the Go toolchain, else "dev".
func Version(override string) string {
	v := ""
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "(devel)" {
		v = bi.Main.Version
	}
	return FirstNonEmpty(override, v, "dev")
}

// EnsureParentDir creates the directory holding a file-backed SQLite path.
// In-memory and URI-style DSNs are left alone.
func EnsureParentDir(dbPath string) error {
	if dbPath == "" || dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
