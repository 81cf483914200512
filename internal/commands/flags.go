package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/stacktools/stackup/internal/core/config"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/pkg/executil"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands.
	// ConfigErr carries a load failure instead of aborting startup, so
	// commands that diagnose a broken setup can still run.
	Config    *config.Config
	ConfigErr error

	// Tokens is the API token store, loaded in the Before hook.
	Tokens *config.TokenStore

	// Git is the version-control collaborator, built in the Before hook.
	Git git.Git

	// Exec runs external commands.
	Exec executil.Executor
}

// Ready returns the config load error, if any. Commands that need a working
// configuration call this first.
func (f *Flags) Ready() error {
	return f.ConfigErr
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "stackup", "config.yaml")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/stackup/stackup.log
// On Linux: $XDG_STATE_HOME/stackup/stackup.log (defaults to ~/.local/state/stackup/stackup.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "stackup", "stackup.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "stackup", "stackup.log")
	}

	return filepath.Join(home, ".local", "state", "stackup", "stackup.log")
}
