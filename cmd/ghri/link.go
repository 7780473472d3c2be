package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chaifeng/ghri/internal/links"
	"github.com/chaifeng/ghri/internal/pkgdir"
)

func newLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <owner/repo[@version][:path]> <dest>",
		Short: "Create a symlink rule into an installed package",
		Long: `Link creates a symlink at dest pointing into the package. Without
@version the link follows the current version across installs; with
@version it stays pinned to that version. The :path selector picks a file
inside the version directory; without it a single-entry directory links
that entry, a multi-entry directory links as a whole.`,
		Example: `  ghri link sharkdp/fd ~/bin/fd
  ghri link sharkdp/fd@v10.1.0 ~/bin/fd-old
  ghri link sharkdp/bat:bat ~/bin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := links.ParseSource(args[0])
			if err != nil {
				return err
			}
			created, err := a.installer.Registry().Create(src, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s link: %s -> %s\n",
				created.Kind, created.Dest, created.Target)
			return nil
		},
	}
}

func newUnlinkCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "unlink <owner/repo[:path]> [dest]",
		Short: "Remove symlink rules of a package",
		Long: `Unlink removes the rule matching dest, or every rule of the package
with --all. Exactly one of the two must be given. The recorded rule is
always dropped; a symlink someone already deleted is not an error.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := links.ParseSource(args[0])
			if err != nil {
				return err
			}
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}
			removed, err := a.installer.Registry().Unlink(src, dest, all)
			if err != nil {
				return err
			}
			for _, rm := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s link at %s\n", rm.Kind, rm.Dest)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every rule of the package")
	return cmd
}

func newLinksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "links <owner/repo>",
		Short: "Report the live state of a package's symlink rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := pkgdir.ParsePackage(args[0])
			if err != nil {
				return err
			}
			statuses, err := a.installer.Registry().Check(pkg)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no link rules recorded")
				return nil
			}
			printLinkStatuses(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
}

func printLinkStatuses(out io.Writer, statuses []links.Status) {
	for _, s := range statuses {
		kind := string(s.Kind)
		if s.Kind == links.KindVersioned {
			kind = "pinned " + s.Version
		}
		fmt.Fprintf(out, "    [%s] %s (%s)\n", s.State, s.Dest, kind)
	}
}
