package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri/internal/install"
	"github.com/chaifeng/ghri/internal/pkgdir"
)

func newRemoveCmd(a *app) *cobra.Command {
	var opts install.RemoveOptions

	cmd := &cobra.Command{
		Use:     "remove <owner/repo>[@version]",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Remove an installed version or the whole package",
		Long: `Without a version the whole package is removed, including all of its
link rules. With a version only that version directory goes away, along
with versioned links bound to it. Removing the current version needs
--force and leaves current dangling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := args[0]
			if at := indexAt(arg); at >= 0 {
				opts.Version = arg[at+1:]
				arg = arg[:at]
			}
			pkg, err := pkgdir.ParsePackage(arg)
			if err != nil {
				return err
			}

			res, err := a.installer.Remove(pkg, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Version != "" {
				fmt.Fprintf(out, "removed %s %s\n", res.Package, res.Version)
			} else {
				fmt.Fprintf(out, "removed %s\n", res.Package)
			}
			for _, rm := range res.LinksRemoved {
				fmt.Fprintf(out, "  unlinked %s\n", rm.Dest)
			}
			for _, skipped := range res.LinksSkipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "  left drifted object at %s\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "allow removing the current version")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune [owner/repo...]",
		Short: "Delete all versions except the current one",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := parsePackages(args)
			if err != nil {
				return err
			}
			results, err := a.installer.Prune(pkgs)
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
				if len(r.Removed) == 0 {
					continue
				}
				fmt.Fprintf(out, "%s: removed %v\n", r.Package, r.Removed)
			}
			if failed > 0 {
				return fmt.Errorf("%d package(s) failed to prune", failed)
			}
			return nil
		},
	}
}
