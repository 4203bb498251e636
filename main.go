package main

import (
	"fmt"
	"os"
	"strings"

	"apexsim/internal/cli"
	"apexsim/internal/config"
	"apexsim/internal/logging"
)

func main() {
	cfg, err := config.Load(configDirArg())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirArg pre-scans for --config so configuration is loaded before
// cobra parses the full command line.
func configDirArg() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if dir, ok := strings.CutPrefix(arg, "--config="); ok {
			return dir
		}
	}
	return ""
}
