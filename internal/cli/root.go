// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	mode       string
	paranoid   bool
	json       bool
	verbose    bool
}

// NewRootCommand builds the rigrun-assist command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "rigrun-assist",
		Short: "rigrun-assist - privacy-aware personal assistant",
		Long: `rigrun-assist turns free-text requests into actions: email, meetings,
web search, food orders and questions about your documents.

Requests that look private (emails, card numbers, credentials, documents)
are only ever shown to the local model. Everything it returns is scrubbed
of personal data before you see it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate(fmt.Sprintf("rigrun-assist %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (default: ~/.rigrun-assist/config.toml)")
	pf.StringVar(&flags.mode, "mode", "", "Routing mode for public requests: auto, local or remote")
	pf.BoolVar(&flags.paranoid, "paranoid", false, "Keep every request on the local model and disable web search")
	pf.BoolVar(&flags.json, "json", false, "Output in JSON format")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug events to stderr")

	root.AddCommand(
		newServeCommand(flags),
		newAskCommand(flags),
		newReplCommand(flags),
		newClassifyCommand(flags),
		newStatusCommand(flags),
		newConfigCommand(flags),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		jsonMode, _ := root.PersistentFlags().GetBool("json")
		DisplayError(os.Stderr, err, jsonMode)
		return GetExitCode(err)
	}
	return 0
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Action: "load config", Err: err, Code: ExitConfig}
	}

	if flags.mode != "" {
		cfg.Routing.Mode = flags.mode
	}
	if flags.paranoid {
		cfg.Routing.Paranoid = true
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, &CommandError{Action: "load config", Err: err, Code: ExitConfig}
	}
	return cfg, nil
}

// loadApp loads config and wires the application. Logs go to stderr.
func loadApp(flags *globalFlags, logOut io.Writer) (*App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	app, err := Build(cfg, NewLogger(cfg.Log, logOut))
	if err != nil {
		return nil, &CommandError{Action: "start", Err: err, Code: ExitConfig}
	}
	return app, nil
}
