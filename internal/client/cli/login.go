package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/secnexus/internal/client/pages"
	"github.com/dmitrijs2005/secnexus/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type loginOptions struct {
	signUp bool
	google bool
	reset  bool
	email  string
}

func newLoginCommand(app func() *App) *cobra.Command {
	var opts loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in or create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd.Context(), app(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.signUp, "signup", false, "create a new account")
	cmd.Flags().BoolVar(&opts.google, "google", false, "sign in with Google")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "send a password reset email")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address (prompted when empty)")
	cmd.MarkFlagsMutuallyExclusive("signup", "google", "reset")
	return cmd
}

func runLogin(ctx context.Context, a *App, opts loginOptions) error {
	page := pages.NewLoginPage(a.sessions)
	if !page.Mount() {
		page.Render(a.out)
		return errReported
	}
	if opts.signUp {
		page.ToggleMode()
	}

	var ok bool
	switch {
	case opts.google:
		_, ok = page.GoogleSignIn(ctx)

	case opts.reset:
		email, err := promptEmail(a, opts.email)
		if err != nil {
			return err
		}
		page.Email = email
		ok = page.ForgotPassword(ctx)

	default:
		if err := fillCredentials(a, page, opts.email); err != nil {
			return err
		}
		fmt.Fprintln(a.out, page.SubmitLabel())
		_, ok = page.Submit(ctx)
	}

	page.Render(a.out)
	if !ok {
		return errReported
	}
	return nil
}

func promptEmail(a *App, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	return getSimpleText(a.in, "Email address", a.out)
}

func fillCredentials(a *App, page *pages.LoginPage, email string) error {
	var err error
	if page.Email, err = promptEmail(a, email); err != nil {
		return err
	}

	pw, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	page.Password = string(pw)
	common.WipeByteArray(pw)

	if page.Mode == pages.ModeSignUp {
		confirm, err := getPassword("Confirm password", a.out)
		if err != nil {
			return err
		}
		page.ConfirmPassword = string(confirm)
		common.WipeByteArray(confirm)
	}
	return nil
}

func newLogoutCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if a.sessions.SignOut(cmd.Context()) {
				fmt.Fprintln(a.out, "Signed out.")
				return nil
			}
			fmt.Fprintln(a.out, "Sign out failed.")
			return errReported
		},
	}
}

func newWhoamiCommand(app func() *App) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			get := a.sessions.Snapshot
			if verify {
				get = a.sessions.CurrentUser
			}
			u, err := get(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(a.out, "Not signed in. Run: nexus login")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s>\nid: %s\n", displayName(u.Name, u.Email), u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "refresh the user from the Identity Service")
	return cmd
}

func newProfileCommand(app func() *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change the display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if name == "" {
				var err error
				if name, err = getSimpleText(a.in, "Display name", a.out); err != nil {
					return err
				}
			}
			if err := a.sessions.UpdateDisplayName(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Display name set to %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "display-name", "", "new display name")
	return cmd
}
