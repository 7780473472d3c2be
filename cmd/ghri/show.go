package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri/internal/pkgdir"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner/repo>",
		Short: "Show a package's descriptor, versions and link states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := pkgdir.ParsePackage(args[0])
			if err != nil {
				return err
			}
			detail, err := a.installer.Show(pkg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			m := detail.Meta
			fmt.Fprintf(out, "%s\n", m.Name)
			if m.Description != "" {
				fmt.Fprintf(out, "  %s\n", m.Description)
			}
			if m.Homepage != "" {
				fmt.Fprintf(out, "  homepage: %s\n", m.Homepage)
			}
			if m.License != "" {
				fmt.Fprintf(out, "  license:  %s\n", m.License)
			}
			fmt.Fprintf(out, "  current:  %s\n", orDash(m.CurrentVersion))
			fmt.Fprintf(out, "  installed: %s\n", orDash(strings.Join(detail.Installed, ", ")))
			if len(m.Filters) > 0 {
				fmt.Fprintf(out, "  filters:  %s\n", strings.Join(m.Filters, " "))
			}

			if len(m.Releases) > 0 {
				fmt.Fprintln(out, "  releases:")
				limit := 10
				for i, rel := range m.Releases {
					if i == limit {
						fmt.Fprintf(out, "    ... %d more\n", len(m.Releases)-limit)
						break
					}
					marker := " "
					if m.CurrentVersion != "" && rel.Version == m.CurrentVersion {
						marker = "*"
					}
					pre := ""
					if rel.Prerelease {
						pre = " (pre-release)"
					}
					fmt.Fprintf(out, "  %s %s%s\n", marker, rel.Version, pre)
				}
			}

			if len(detail.Links) > 0 {
				fmt.Fprintln(out, "  links:")
				printLinkStatuses(out, detail.Links)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
