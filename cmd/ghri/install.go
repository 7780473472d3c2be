package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri/internal/install"
	"github.com/chaifeng/ghri/internal/pkgdir"
	"github.com/chaifeng/ghri/internal/verify"
)

func newInstallCmd(a *app) *cobra.Command {
	var opts install.InstallOptions

	cmd := &cobra.Command{
		Use:   "install <owner/repo>[@version]",
		Short: "Install a package from its GitHub releases",
		Example: `  ghri install sharkdp/fd
  ghri install sharkdp/fd@v10.1.0
  ghri install BurntSushi/ripgrep --filter '*musl*'`,
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

			res, err := a.installer.Install(cmd.Context(), pkg, opts)
			if err != nil {
				return err
			}
			printInstallResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "asset name glob, repeatable, all must match")
	cmd.Flags().BoolVar(&opts.Prerelease, "pre", false, "allow pre-releases when resolving latest")
	return cmd
}

func printInstallResult(cmd *cobra.Command, res *install.InstallResult) {
	out := cmd.OutOrStdout()
	verb := "installed"
	if res.Reused {
		verb = "reusing"
	}
	fmt.Fprintf(out, "%s %s %s", verb, res.Package, res.Version)
	if res.Verified != verify.MethodNone {
		fmt.Fprintf(out, " (verified: %s)", res.Verified)
	}
	fmt.Fprintln(out)
	for _, err := range res.RepointErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}

// indexAt finds the version separator in an owner/repo[@version] argument.
func indexAt(arg string) int {
	for i := len(arg) - 1; i >= 0; i-- {
		if arg[i] == '@' {
			return i
		}
		if arg[i] == '/' {
			return -1
		}
	}
	return -1
}
