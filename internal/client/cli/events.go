package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/secnexus/internal/client/pages"
	"github.com/dmitrijs2005/secnexus/internal/client/provisioning"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

func newEventsCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event"},
		Short:   "Create and follow events",
	}
	cmd.AddCommand(
		newEventCreateCommand(app),
		newEventListCommand(app),
		newEventWatchCommand(app),
	)
	return cmd
}

// formField is one prompt of the event form.
type formField struct {
	prompt    string
	multiline bool
	set       func(in *models.EventInput, v string) error
}

func text(dst func(*models.EventInput) *string) func(*models.EventInput, string) error {
	return func(in *models.EventInput, v string) error {
		*dst(in) = v
		return nil
	}
}

var eventForm = []formField{
	{prompt: "Event name", set: text(func(in *models.EventInput) *string { return &in.Name })},
	{prompt: "Description", multiline: true, set: text(func(in *models.EventInput) *string { return &in.Description })},
	{prompt: "Host name", set: text(func(in *models.EventInput) *string { return &in.HostName })},
	{prompt: "Date (YYYY-MM-DD)", set: text(func(in *models.EventInput) *string { return &in.Date })},
	{prompt: "Contact email", set: text(func(in *models.EventInput) *string { return &in.Email })},
	{prompt: "Country", set: text(func(in *models.EventInput) *string { return &in.Country })},
	{prompt: "Address", set: text(func(in *models.EventInput) *string { return &in.Address })},
	{prompt: "City", set: text(func(in *models.EventInput) *string { return &in.City })},
	{prompt: "State", set: text(func(in *models.EventInput) *string { return &in.State })},
	{prompt: "Postal code", set: text(func(in *models.EventInput) *string { return &in.Postal })},
	{prompt: "Audience", set: text(func(in *models.EventInput) *string { return &in.Audience })},
	{prompt: "Type (offline/online)", set: text(func(in *models.EventInput) *string { return &in.Type })},
	{prompt: "Attendees", set: func(in *models.EventInput, v string) error {
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("attendees must be a number")
		}
		in.Attendees = n
		return nil
	}},
	{prompt: "Price", set: func(in *models.EventInput, v string) error {
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("price must be a number")
		}
		in.Price = f
		return nil
	}},
	{prompt: "Technology", set: text(func(in *models.EventInput) *string { return &in.Tech })},
	{prompt: "Agenda", multiline: true, set: text(func(in *models.EventInput) *string { return &in.Agenda })},
	{prompt: "Approval (yes/no)", set: text(func(in *models.EventInput) *string { return &in.Approval })},
	{prompt: "Twitter", set: text(func(in *models.EventInput) *string { return &in.Twitter })},
	{prompt: "Website", set: text(func(in *models.EventInput) *string { return &in.Website })},
	{prompt: "LinkedIn", set: text(func(in *models.EventInput) *string { return &in.LinkedIn })},
	{prompt: "Instagram", set: text(func(in *models.EventInput) *string { return &in.Instagram })},
}

func newEventCreateCommand(app func() *App) *cobra.Command {
	var banner string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEventCreate(cmd.Context(), app(), banner)
		},
	}
	cmd.Flags().StringVar(&banner, "banner", "", "path of the banner image (prompted when empty)")
	return cmd
}

func runEventCreate(ctx context.Context, a *App, banner string) error {
	page := pages.NewEventFormPage(a.events)

	for _, f := range eventForm {
		var (
			v   string
			err error
		)
		if f.multiline {
			v, err = GetMultiline(a.in, f.prompt, a.out)
		} else {
			v, err = getSimpleText(a.in, f.prompt, a.out)
		}
		if err != nil {
			return err
		}
		if err := f.set(&page.Input, v); err != nil {
			return err
		}
	}

	if banner == "" {
		var err error
		if banner, err = getSimpleText(a.in, "Banner image path", a.out); err != nil {
			return err
		}
	}
	page.BannerPath = banner

	pairs, err := GetPairs(a.in, "Sponsors as name=url", a.out)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		name, url, _ := strings.Cut(p, "=")
		page.AddSponsor(name, url)
	}

	_, ok := page.Submit(ctx)
	page.Render(a.out)
	if !ok {
		return errReported
	}
	return nil
}

func newEventListCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the events you created",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEventsList(cmd.Context(), app())
		},
	}
}

func runEventsList(ctx context.Context, a *App) error {
	docs, err := a.events.ListOwnEvents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "You have not created any events yet. Run: nexus events create")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(a.out, "%s  %v  %v\n", d.ID, d.Fields["eventdate"], d.Fields["eventname"])
	}
	return nil
}

func newEventWatchCommand(app func() *App) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch [event-id]",
		Short: "Print provisioning outcomes",
		Long: "Print provisioning outcomes as the provisioner reports them. With an " +
			"event id the command stops once that event is provisioned.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var eventID string
			if len(args) == 1 {
				eventID = args[0]
			}
			return runWatch(cmd.Context(), app(), eventID, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop after this long (0 waits until interrupted)")
	return cmd
}

func runWatch(ctx context.Context, a *App, eventID string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcomes, stop, err := provisioning.Watch(a.outcomes, eventID, a.log)
	if err != nil {
		return fmt.Errorf("watch provisioning: %w", err)
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case o, ok := <-outcomes:
			if !ok {
				return nil
			}
			printOutcome(a, o)
			if eventID != "" && o.Status == models.JobSucceeded {
				return nil
			}
		}
	}
}

func printOutcome(a *App, o models.ProvisionOutcome) {
	switch o.Status {
	case models.JobSucceeded:
		fmt.Fprintf(a.out, "%s  %s  registration and sponsor lists ready (attempt %d)\n",
			o.FinishedAt.Format(time.DateTime), o.EventID, o.Attempts)
	default:
		fmt.Fprintf(a.out, "%s  %s  %s after %d attempt(s): %s\n",
			o.FinishedAt.Format(time.DateTime), o.EventID, o.Status, o.Attempts, o.Error)
	}
}
