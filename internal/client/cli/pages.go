package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/secnexus/internal/client/pages"
)

func newHomeCommand(app func() *App) *cobra.Command {
	var start bool
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Show the home page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if !start {
				return runHome(cmd.Context(), a)
			}
			switch pages.NewHomePage(a.sessions).GetStarted(cmd.Context()) {
			case pages.RouteLanding:
				return runLanding(cmd.Context(), a)
			default:
				return runLogin(cmd.Context(), a, loginOptions{})
			}
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "follow the Get started action")
	return cmd
}

func runHome(_ context.Context, a *App) error {
	pages.NewHomePage(a.sessions).Render(a.out)
	return nil
}

// runLanding is where a signed-in user arrives: a greeting and the events
// they created.
func runLanding(ctx context.Context, a *App) error {
	u, err := a.sessions.Snapshot(ctx)
	if err != nil {
		return err
	}
	if u != nil {
		fmt.Fprintf(a.out, "Welcome, %s\n\n", displayName(u.Name, u.Email))
	}
	return runEventsList(ctx, a)
}

func newAboutCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "about",
		Short:       "About SEC-NEXUS",
		Args:        cobra.NoArgs,
		Annotations: offline,
		Run: func(cmd *cobra.Command, _ []string) {
			pages.AboutPage{}.Render(cmd.OutOrStdout())
		},
	}
}

func newContactCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "contact",
		Short:       "Contact the SEC-NEXUS team",
		Args:        cobra.NoArgs,
		Annotations: offline,
		Run: func(cmd *cobra.Command, _ []string) {
			pages.ContactPage{}.Render(cmd.OutOrStdout())
		},
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
