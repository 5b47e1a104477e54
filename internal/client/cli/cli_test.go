package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/client/config"
	"github.com/dmitrijs2005/secnexus/internal/client/pages"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

type fakeSessions struct {
	notReady  bool
	snapshot  *models.User
	signInErr error
	signOutOK bool

	mu      sync.Mutex
	calls   []string
	email   string
	pw      string
	newName string
}

func (f *fakeSessions) record(c string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeSessions) Ready() bool { return !f.notReady }

func (f *fakeSessions) SignIn(_ context.Context, email, pw string) (*models.User, error) {
	f.record("signin")
	f.email, f.pw = email, pw
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &models.User{ID: "u1", Email: email}, nil
}

func (f *fakeSessions) SignUp(_ context.Context, email, pw string) (*models.User, error) {
	f.record("signup")
	f.email, f.pw = email, pw
	return &models.User{ID: "u2", Email: email}, nil
}

func (f *fakeSessions) SignInWithProvider(context.Context) (*models.User, error) {
	f.record("google")
	return &models.User{ID: "g1", Email: "g@example.com"}, nil
}

func (f *fakeSessions) RequestPasswordReset(_ context.Context, email string) error {
	f.record("reset")
	f.email = email
	return nil
}

func (f *fakeSessions) SignOut(context.Context) bool {
	f.record("signout")
	return f.signOutOK
}

func (f *fakeSessions) Snapshot(context.Context) (*models.User, error) { return f.snapshot, nil }

func (f *fakeSessions) CurrentUser(context.Context) (*models.User, error) {
	f.record("current")
	return f.snapshot, nil
}

func (f *fakeSessions) UpdateDisplayName(_ context.Context, name string) error {
	f.record("rename")
	f.newName = name
	return nil
}

type fakeEvents struct {
	docs     []appwrite.Document
	input    models.EventInput
	sponsors []models.Sponsor
	banner   string
	called   bool
}

func (f *fakeEvents) CreateEvent(_ context.Context, in models.EventInput, b models.Banner, sp []models.Sponsor) (string, error) {
	f.called = true
	f.input, f.sponsors = in, sp
	data, _ := io.ReadAll(b.Body)
	f.banner = string(data)
	return common.SuccessMarker, nil
}

func (f *fakeEvents) ListOwnEvents(context.Context) ([]appwrite.Document, error) {
	return f.docs, nil
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.Identity.APIKey = "key"
	c.Store.Project = "p"
	c.Store.DatabaseID = "db"
	c.Store.EventsCollectionID = "events"
	c.Store.BannerBucketID = "banners"
	c.DispatchTimeout = time.Second
	return c
}

type harness struct {
	app      *App
	sessions *fakeSessions
	events   *fakeEvents
	out      *bytes.Buffer
	built    int
}

func newHarness(input string) *harness {
	h := &harness{sessions: &fakeSessions{signOutOK: true}, events: &fakeEvents{}, out: &bytes.Buffer{}}
	h.app = &App{
		cfg:      testConfig(),
		log:      logging.Nop{},
		in:       bufio.NewReader(strings.NewReader(input)),
		out:      h.out,
		sessions: h.sessions,
		events:   h.events,
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	root, closeApp := NewRootCommand(testConfig(), func(context.Context, *config.Config) (*App, error) {
		h.built++
		return h.app, nil
	})
	root.SetArgs(args)
	root.SetOut(h.out)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, closeApp())
	return err
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	i := 0
	getPassword = func(string, io.Writer) ([]byte, error) {
		if i >= len(pws) {
			return nil, errors.New("no more passwords")
		}
		pw := pws[i]
		i++
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func TestStaticPages_DoNotBuildApp(t *testing.T) {
	for _, name := range []string{"about", "contact"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness("")
			require.NoError(t, h.run(t, name))
			assert.Zero(t, h.built)
		})
	}

	h := newHarness("")
	require.NoError(t, h.run(t, "contact"))
	assert.Contains(t, h.out.String(), pages.SupportEmail)
}

func TestHome_Render(t *testing.T) {
	h := newHarness("")
	require.NoError(t, h.run(t))
	assert.Contains(t, h.out.String(), "Welcome to SEC-NEXUS")
	assert.Equal(t, 1, h.built)
}

func TestHome_StartWithSnapshotGoesToLanding(t *testing.T) {
	h := newHarness("")
	h.sessions.snapshot = &models.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}
	h.events.docs = []appwrite.Document{{ID: "e1", Fields: map[string]any{"eventname": "Fest", "eventdate": "2026-11-01"}}}

	require.NoError(t, h.run(t, "home", "--start"))
	assert.Contains(t, h.out.String(), "Welcome, Ann")
	assert.Contains(t, h.out.String(), "e1  2026-11-01  Fest")
	assert.Empty(t, h.sessions.calls)
}

func TestHome_StartWithoutSnapshotGoesToLogin(t *testing.T) {
	h := newHarness("ann@example.com\n")
	stubPasswords(t, "pw")

	require.NoError(t, h.run(t, "home", "--start"))
	assert.Equal(t, []string{"signin"}, h.sessions.calls)
}

func TestLogin_Success(t *testing.T) {
	h := newHarness("ann@example.com\n")
	stubPasswords(t, "secret")

	require.NoError(t, h.run(t, "login"))
	assert.Equal(t, "ann@example.com", h.sessions.email)
	assert.Equal(t, "secret", h.sessions.pw)
	assert.Contains(t, h.out.String(), "Signed in as ann@example.com")
}

func TestLogin_UnknownEmailShowsMappedMessage(t *testing.T) {
	h := newHarness("")
	h.sessions.signInErr = &common.AuthError{Code: common.AuthUserNotFound, Message: "EMAIL_NOT_FOUND"}
	stubPasswords(t, "secret")

	err := h.run(t, "login", "--email", "nobody@example.com")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, h.out.String(), "No account found with this email.")
}

func TestLogin_SignUpMismatchNeverCallsService(t *testing.T) {
	h := newHarness("ann@example.com\n")
	stubPasswords(t, "one", "two")

	err := h.run(t, "login", "--signup")
	require.ErrorIs(t, err, errReported)
	assert.Empty(t, h.sessions.calls)
	assert.Contains(t, h.out.String(), pages.MsgPasswordMismatch)
}

func TestLogin_SignUp(t *testing.T) {
	h := newHarness("ann@example.com\n")
	stubPasswords(t, "same", "same")

	require.NoError(t, h.run(t, "login", "--signup"))
	assert.Equal(t, []string{"signup"}, h.sessions.calls)
}

func TestLogin_NotReady(t *testing.T) {
	h := newHarness("")
	h.sessions.notReady = true

	err := h.run(t, "login")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, h.out.String(), "Loading...")
	assert.Empty(t, h.sessions.calls)
}

func TestLogin_GoogleAndReset(t *testing.T) {
	h := newHarness("")
	require.NoError(t, h.run(t, "login", "--google"))

	require.NoError(t, h.run(t, "login", "--reset", "--email", "ann@example.com"))
	assert.Equal(t, []string{"google", "reset"}, h.sessions.calls)
	assert.Contains(t, h.out.String(), pages.MsgResetSent)
}

func TestLogoutWhoamiProfile(t *testing.T) {
	h := newHarness("")
	require.NoError(t, h.run(t, "whoami"))
	assert.Contains(t, h.out.String(), "Not signed in")

	h.sessions.snapshot = &models.User{ID: "u1", Email: "ann@example.com"}
	require.NoError(t, h.run(t, "whoami", "--verify"))
	assert.Contains(t, h.out.String(), "id: u1")

	require.NoError(t, h.run(t, "profile", "--display-name", "Ann"))
	assert.Equal(t, "Ann", h.sessions.newName)

	require.NoError(t, h.run(t, "logout"))
	h.sessions.signOutOK = false
	require.ErrorIs(t, h.run(t, "logout"), errReported)
	assert.Equal(t, []string{"current", "rename", "signout", "signout"}, h.sessions.calls)
}

func TestEventsCreate(t *testing.T) {
	banner := filepath.Join(t.TempDir(), "poster.png")
	require.NoError(t, os.WriteFile(banner, []byte("png-bytes"), 0o600))

	input := strings.Join([]string{
		"Tech Fest",             // name
		"Two days of talks", "", // description
		"CS Dept",          // host
		"2026-11-01",       // date
		"fest@example.com", // email
		"India", "Laitumkhrah", "Shillong", "Meghalaya", "793003",
		"Students", "offline",
		"150", "0",
		"Go",
		"", // agenda
		"yes",
		"", "", "", "",
		"Acme=https://acme.example", "Globex=https://globex.example", "",
	}, "\n") + "\n"

	h := newHarness(input)
	require.NoError(t, h.run(t, "events", "create", "--banner", banner))

	require.True(t, h.events.called)
	assert.Equal(t, "Tech Fest", h.events.input.Name)
	assert.Equal(t, "Two days of talks", h.events.input.Description)
	assert.Equal(t, 150, h.events.input.Attendees)
	assert.Equal(t, "png-bytes", h.events.banner)
	assert.Equal(t, []models.Sponsor{
		{Name: "Acme", URL: "https://acme.example"},
		{Name: "Globex", URL: "https://globex.example"},
	}, h.events.sponsors)
	assert.Contains(t, h.out.String(), "Event created.")
}

func TestEventsCreate_BadNumber(t *testing.T) {
	input := strings.Repeat("x\n", 1) + "\n" + strings.Repeat("x\n", 10) + "many\n"
	h := newHarness(input)
	err := h.run(t, "event", "create", "--banner", "b.png")
	require.EqualError(t, err, "attendees must be a number")
	assert.False(t, h.events.called)
}

func TestEventsList_Empty(t *testing.T) {
	h := newHarness("")
	require.NoError(t, h.run(t, "events", "list"))
	assert.Contains(t, h.out.String(), "not created any events")
}

func TestEventsWatch_StopsOnSuccess(t *testing.T) {
	mem := broker.NewMemory(logging.Nop{})
	t.Cleanup(func() { _ = mem.Close() })

	h := newHarness("")
	h.app.outcomes = mem

	done := make(chan error, 1)
	go func() { done <- h.run(t, "events", "watch", "e1", "--timeout", "5s") }()

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Contains(t, h.out.String(), "e1  registration and sponsor lists ready")
			return
		case <-tick.C:
			_ = mem.Publish(context.Background(), broker.SubjectProvisionSucceeded, models.ProvisionOutcome{
				EventID: "e1", Status: models.JobSucceeded, Attempts: 1, FinishedAt: time.Now(),
			})
		}
	}
}

func TestExecute_InvalidConfig(t *testing.T) {
	var stderr bytes.Buffer
	t.Setenv("NEXUS_FIREBASE_API_KEY", "")
	code := Execute(context.Background(), []string{"whoami", "--state", filepath.Join(t.TempDir(), "s.db")}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "config: identity.api_key is required")
}

func TestLazyBroker_RedialsAfterFailure(t *testing.T) {
	defer func(f func(string, logging.Logger) (broker.Broker, error)) { openBroker = f }(openBroker)
	dials := 0
	openBroker = func(url string, log logging.Logger) (broker.Broker, error) {
		dials++
		if dials == 1 {
			return nil, errors.New("connection refused")
		}
		return broker.NewMemory(log), nil
	}

	l := &lazyBroker{url: "nats://127.0.0.1:4222", log: logging.Nop{}}
	ctx := context.Background()

	require.ErrorContains(t, l.Publish(ctx, broker.SubjectProvisionRequested, []byte(`{}`)), "connection refused")
	require.NoError(t, l.Publish(ctx, broker.SubjectProvisionRequested, []byte(`{}`)))
	_, err := l.Subscribe(broker.SubjectProvisionFailed, "", func(context.Context, []byte) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, dials, "a working connection is reused")

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Publish(ctx, broker.SubjectProvisionRequested, []byte(`{}`)), broker.ErrClosed)
	assert.Equal(t, 2, dials)
}
