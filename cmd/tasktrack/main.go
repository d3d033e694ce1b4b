package main

import (
	"fmt"
	"os"

	"tasktrack/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

// run returns the process exit code. It exists so deferred cleanup runs
// before os.Exit.
func run() int {
	defer closeLogFileSink()

	cfg, err := config.Load()
	if err != nil {
		for _, line := range formatConfigError(err) {
			fmt.Fprintln(os.Stderr, line)
		}
		return 1
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		for _, line := range formatCLIError(err) {
			fmt.Fprintln(os.Stderr, line)
		}
		return 1
	}
	return 0
}

func formatConfigError(err error) []string {
	lines := []string{"load config: " + err.Error()}
	if path, pathErr := config.Path(); pathErr == nil {
		lines = append(lines, "hint: check "+path+" or the TASKTRACK_* environment variables")
	}
	return append(lines, "hint: set TASKTRACK_CONFIG_DIR to read the config file from another directory")
}
