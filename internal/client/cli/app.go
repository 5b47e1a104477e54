package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/client/config"
	"github.com/dmitrijs2005/secnexus/internal/client/provisioning"
	"github.com/dmitrijs2005/secnexus/internal/client/services"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// errReported marks a failure the page has already rendered.
var errReported = errors.New("reported")

// Sessions is the session adapter surface used by the commands.
type Sessions interface {
	Ready() bool
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignInWithProvider(ctx context.Context) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) bool
	Snapshot(ctx context.Context) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	UpdateDisplayName(ctx context.Context, name string) error
}

// Events is the event adapter surface used by the commands.
type Events interface {
	CreateEvent(ctx context.Context, in models.EventInput, banner models.Banner, sponsors []models.Sponsor) (string, error)
	ListOwnEvents(ctx context.Context) ([]appwrite.Document, error)
}

// App carries what the commands need. Fields are filled by a Builder.
type App struct {
	cfg *config.Config
	log logging.Logger

	in  *bufio.Reader
	out io.Writer

	sessions Sessions
	events   Events
	outcomes provisioning.Subscriber

	closers []func(ctx context.Context) error
}

// Builder creates the App once flags are parsed.
type Builder func(ctx context.Context, cfg *config.Config) (*App, error)

func newApp(cfg *config.Config, log logging.Logger) *App {
	return &App{
		cfg: cfg,
		log: log,
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

// onClose registers fn to run on Close, in reverse order.
func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything the App opened. Pending provisioning hand-offs
// get up to the dispatch timeout to finish.
func (a *App) Close() error {
	timeout := 10 * time.Second
	if a.cfg != nil && a.cfg.DispatchTimeout > 0 {
		timeout = a.cfg.DispatchTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var (
	_ Sessions = (*services.SessionService)(nil)
	_ Events   = (*services.EventService)(nil)
)
