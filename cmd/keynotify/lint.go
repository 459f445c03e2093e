package main

import (
	"fmt"

	"github.com/MrEthical07/keynotify"
	"github.com/spf13/cobra"
)

func lintCmd(flags *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check the effective configuration for risky settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			warnings := cfg.Lint()
			if len(warnings) == 0 {
				success(out, "no findings")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "[%s] %s: %s\n", w.Severity, w.Code, w.Message)
			}
			if strict {
				return warnings.AsError(keynotify.LintWarn)
			}
			return warnings.AsError(keynotify.LintHigh)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings as well as high findings")
	return cmd
}
