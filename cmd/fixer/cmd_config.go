package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linefixer/internal/config"
	"linefixer/internal/driver"
)

// newConfigCmd groups config file helpers.
func newConfigCmd(o *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the fixer config file",
		// The file may not exist or parse yet; skip the root config load.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to --config",
		Long: `Writes every setting with its default value so it can be edited.
Provider keys are not written; keep them in the environment or .env.

Example:
  fixer config init
  fixer config init --config ci/fixer.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runConfigInit(cmd)
		},
	}
	initCmd.Flags().BoolVar(&o.force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func (o *cliOptions) runConfigInit(cmd *cobra.Command) error {
	path := o.configPath
	if path == "" {
		return &config.Error{Field: "--config", Msg: "must not be empty"}
	}
	if _, err := os.Stat(path); err == nil && !o.force {
		return &config.Error{Field: path, Msg: "already exists (use --force to overwrite)"}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &driver.IOError{Op: "stat", Path: path, Err: err}
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return &driver.IOError{Op: "write", Path: path, Err: err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
