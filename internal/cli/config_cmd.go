// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/config"
)

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if flags.json {
				// String() already redacts; decode it so the envelope nests JSON.
				var redacted any
				if err := json.Unmarshal([]byte(cfg.String()), &redacted); err != nil {
					return err
				}
				return NewJSONResponse("config show", redacted).Write(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(flags)
			if err != nil {
				return err
			}
			if err := config.Init(path); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return &CommandError{Action: "config init", Err: fmt.Errorf("%s already exists", path), Code: ExitUsage}
				}
				return &CommandError{Action: "config init", Err: err, Code: ExitConfig}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", RenderStatus("ok"), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}

func configFilePath(flags *globalFlags) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", &CommandError{Action: "config path", Err: err, Code: ExitConfig}
	}
	return path, nil
}
