package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri/internal/pkgdir"
)

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [owner/repo...]",
		Short: "Refresh release metadata without installing anything",
		Long: `Update fetches the current release list and repository details for the
named packages, or for every installed package when none are given. The
installed versions and links are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := parsePackages(args)
			if err != nil {
				return err
			}
			results, err := a.installer.Update(cmd.Context(), pkgs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Package, r.Err)
					continue
				}
				if r.Outdated {
					fmt.Fprintf(out, "%s: %s -> %s available\n", r.Package, r.Current, r.Latest)
				} else {
					fmt.Fprintf(out, "%s: up to date (%s)\n", r.Package, r.Current)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d package(s) failed to update", failed)
			}
			return nil
		},
	}
}

func parsePackages(args []string) ([]pkgdir.Package, error) {
	pkgs := make([]pkgdir.Package, 0, len(args))
	for _, arg := range args {
		pkg, err := pkgdir.ParsePackage(arg)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}
