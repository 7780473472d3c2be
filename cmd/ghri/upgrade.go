package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpgradeCmd(a *app) *cobra.Command {
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "upgrade [owner/repo...]",
		Short: "Update metadata and install the latest release where outdated",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := parsePackages(args)
			if err != nil {
				return err
			}
			results, errs := a.installer.Upgrade(cmd.Context(), pkgs, prerelease)

			out := cmd.OutOrStdout()
			if len(results) == 0 && len(errs) == 0 {
				fmt.Fprintln(out, "everything is up to date")
			}
			for _, res := range results {
				printInstallResult(cmd, res)
			}
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d package(s) failed to upgrade", len(errs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prerelease, "pre", false, "allow pre-releases")
	return cmd
}
