package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/secnexus/internal/buildinfo"
	"github.com/dmitrijs2005/secnexus/internal/client/config"
)

// Execute loads the configuration for args and runs the command tree.
func Execute(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	root, closeApp := NewRootCommand(cfg, NewApp)
	root.SetArgs(args)
	root.SetErr(stderr)

	err = root.ExecuteContext(ctx)
	if cerr := closeApp(); cerr != nil {
		fmt.Fprintln(stderr, "close:", cerr)
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// NewRootCommand builds the nexus command tree. build is called once the
// flags are parsed; commands marked offline (about, contact) skip it. The
// returned function closes whatever build created and must be called after
// the command ran.
func NewRootCommand(cfg *config.Config, build Builder) (*cobra.Command, func() error) {
	var app *App

	root := &cobra.Command{
		Use:           "nexus",
		Short:         "SEC-NEXUS college events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationOffline] == "true" || cmd.Name() == "help" {
				return nil
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
	}
	config.BindFlags(root.PersistentFlags(), cfg)

	current := func() *App { return app }
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return runHome(cmd.Context(), current())
	}

	root.AddCommand(
		newHomeCommand(current),
		newAboutCommand(),
		newContactCommand(),
		newLoginCommand(current),
		newLogoutCommand(current),
		newWhoamiCommand(current),
		newProfileCommand(current),
		newEventsCommand(current),
		newVersionCommand(),
	)
	closeApp := func() error {
		if app == nil {
			return nil
		}
		return app.Close()
	}
	return root, closeApp
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: offline,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}

const annotationOffline = "offline"

var offline = map[string]string{annotationOffline: "true"}
