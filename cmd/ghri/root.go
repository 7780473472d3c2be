package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaifeng/ghri/internal/config"
	"github.com/chaifeng/ghri/internal/install"
	"github.com/chaifeng/ghri/internal/logging"
	"github.com/chaifeng/ghri/internal/platform"
)

// app carries the resolved configuration and wired collaborators into the
// command implementations.
type app struct {
	flags      config.Settings
	configPath string
	yes        bool
	verbose    bool
	quiet      bool

	settings  config.Settings
	log       *zap.Logger
	info      *platform.Info
	installer *install.Installer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ghri",
		Short: "Install and version binaries from GitHub releases",
		Long: `ghri installs tagged release archives from GitHub repositories into
versioned directories and manages symlinks into them. Each package lives
under <root>/<owner>/<repo> with one directory per installed version and
a "current" symlink selecting the active one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.flags.Root, "root", "", "installation root (default ~/.ghri, env GHRI_ROOT)")
	flags.StringVar(&a.flags.APIURL, "api-url", "", "GitHub API base URL (env GHRI_API_URL)")
	flags.StringVar(&a.flags.Token, "token", "", "access token (env GITHUB_TOKEN)")
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	flags.BoolVarP(&a.yes, "yes", "y", false, "assume yes, never prompt")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "only print errors")

	cmd.AddCommand(
		newInstallCmd(a),
		newUpdateCmd(a),
		newUpgradeCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newLinkCmd(a),
		newUnlinkCmd(a),
		newLinksCmd(a),
		newRemoveCmd(a),
		newPruneCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	detector := platform.NewDetector()
	info, err := detector.Detect(ctx)
	if err != nil {
		return err
	}
	a.info = info

	configPath := a.configPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	var fileSettings *config.Settings
	if configPath != "" {
		parser := config.NewParser(&platform.StaticDetector{Info: *info})
		fileSettings, err = parser.ParseFile(ctx, configPath)
		if err != nil {
			return err
		}
	}

	a.settings = config.Resolve(a.flags, fileSettings)
	a.log = logging.New(logging.Options{
		Level:   a.settings.LogLevel,
		File:    a.settings.LogFile,
		Verbose: a.verbose,
		Quiet:   a.quiet,
	})

	var confirm install.Confirmer
	if a.yes {
		confirm = install.AutoApprove{}
	} else {
		confirm = &promptConfirmer{out: cmd.OutOrStdout()}
	}
	progress := !a.quiet
	a.installer = install.New(a.settings, info, confirm, progress, a.log)
	return nil
}

// promptConfirmer prints the plan and reads a y/N answer from stdin.
type promptConfirmer struct {
	out io.Writer
}

func (p *promptConfirmer) Confirm(plan *install.Plan) (bool, error) {
	fmt.Fprintf(p.out, "%s %s", plan.Operation, plan.Package)
	if plan.Version != "" {
		fmt.Fprintf(p.out, "@%s", plan.Version)
	}
	fmt.Fprintln(p.out)
	for _, action := range plan.Actions {
		fmt.Fprintf(p.out, "  - %s\n", action)
	}
	fmt.Fprint(p.out, "Proceed? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ghri version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ghri %s\n", Version)
		},
	}
}
