package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

type fakeSessions struct {
	sess *models.Session
	err  error
}

func (f fakeSessions) Session(context.Context) (*models.Session, error) { return f.sess, f.err }

type fakeBucket struct {
	calls  []string
	err    error
	record *[]string
}

func (b *fakeBucket) Upload(_ context.Context, fileID string, _ models.Banner) (string, error) {
	*b.record = append(*b.record, "upload")
	b.calls = append(b.calls, fileID)
	if b.err != nil {
		return "", b.err
	}
	return "https://store/banners/" + fileID, nil
}

type fakeDocs struct {
	mu     sync.Mutex
	data   map[string]any
	db     string
	col    string
	err    error
	list   *appwrite.DocumentList
	record *[]string
}

func (d *fakeDocs) CreateDocument(_ context.Context, db, col, id string, data map[string]any, _ []string) (*appwrite.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.record = append(*d.record, "document")
	d.db, d.col, d.data = db, col, data
	if d.err != nil {
		return nil, d.err
	}
	return &appwrite.Document{ID: id}, nil
}

func (d *fakeDocs) ListDocuments(_ context.Context, db, col string, queries ...string) (*appwrite.DocumentList, error) {
	return d.list, d.err
}

type fakeDispatcher struct {
	tasks  []models.ProvisionTask
	record *[]string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, task models.ProvisionTask) {
	*f.record = append(*f.record, "dispatch")
	f.tasks = append(f.tasks, task)
}

type eventFixture struct {
	svc    *EventService
	bucket *fakeBucket
	docs   *fakeDocs
	disp   *fakeDispatcher
	order  []string
}

func newEventFixture(sessions SessionSource) *eventFixture {
	f := &eventFixture{}
	f.bucket = &fakeBucket{record: &f.order}
	f.docs = &fakeDocs{record: &f.order}
	f.disp = &fakeDispatcher{record: &f.order}
	f.svc = NewEventService(sessions, f.bucket, f.docs, f.disp, EventLocation{DatabaseID: "main", CollectionID: "events"}, logging.Nop{})
	n := 0
	f.svc.newID = func() string { n++; return []string{"", "file-1", "event-1"}[n] }
	f.svc.now = func() time.Time { return testNow }
	return f
}

func signedIn() SessionSource {
	return fakeSessions{sess: &models.Session{UserID: "uid-1", IDToken: "t", RefreshToken: "r", ExpiresAt: testNow.Add(time.Hour)}}
}

func banner() models.Banner {
	return models.Banner{FileName: "b.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func TestCreateEvent_Success(t *testing.T) {
	f := newEventFixture(signedIn())
	sponsors := []models.Sponsor{{Name: "Acme", URL: "https://acme"}, {Name: "Beta", URL: "https://beta"}}

	res, err := f.svc.CreateEvent(context.Background(), models.EventInput{Name: "TechFest", Attendees: 200}, banner(), sponsors)
	require.NoError(t, err)
	assert.Equal(t, "success", res)

	assert.Equal(t, []string{"upload", "document", "dispatch"}, f.order)
	assert.Equal(t, "main", f.docs.db)
	assert.Equal(t, "events", f.docs.col)
	assert.Equal(t, "https://store/banners/file-1", f.docs.data["url"])
	assert.Equal(t, "uid-1", f.docs.data["created"])
	assert.Equal(t, []string{}, f.docs.data["registrations"])

	require.Len(t, f.disp.tasks, 1)
	task := f.disp.tasks[0]
	assert.Equal(t, "event-1", task.EventID)
	assert.Equal(t, "TechFest", task.EventName)
	assert.Equal(t, "uid-1", task.OwnerID)
	assert.Equal(t, sponsors, task.Sponsors)
}

func TestCreateEvent_NoSession(t *testing.T) {
	f := newEventFixture(fakeSessions{err: common.ErrNoSession})

	_, err := f.svc.CreateEvent(context.Background(), models.EventInput{}, banner(), nil)
	var ae *common.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, common.AuthNoCurrentUser, ae.Code)
	assert.Empty(t, f.order)
}

func TestCreateEvent_UploadRejected(t *testing.T) {
	f := newEventFixture(signedIn())
	f.bucket.err = &common.StorageError{RemoteError: common.RemoteError{Op: "upload file", Status: 400}}

	_, err := f.svc.CreateEvent(context.Background(), models.EventInput{}, banner(), nil)
	var se *common.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"upload"}, f.order)
}

func TestCreateEvent_RecordRejected(t *testing.T) {
	f := newEventFixture(signedIn())
	f.docs.err = &common.DataError{RemoteError: common.RemoteError{Op: "create document", Status: 401}}

	_, err := f.svc.CreateEvent(context.Background(), models.EventInput{}, banner(), nil)
	var de *common.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"upload", "document"}, f.order)
	assert.Empty(t, f.disp.tasks)
}

func TestCreateEvent_NilSponsorsBecomeEmpty(t *testing.T) {
	f := newEventFixture(signedIn())
	_, err := f.svc.CreateEvent(context.Background(), models.EventInput{Name: "x"}, banner(), nil)
	require.NoError(t, err)
	assert.NotNil(t, f.disp.tasks[0].Sponsors)
	assert.Empty(t, f.disp.tasks[0].Sponsors)
}

func TestListOwnEvents(t *testing.T) {
	f := newEventFixture(signedIn())
	f.docs.list = &appwrite.DocumentList{Total: 1, Documents: []appwrite.Document{{ID: "e1"}}}

	docs, err := f.svc.ListOwnEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	f = newEventFixture(fakeSessions{err: errors.New("x")})
	_, err = f.svc.ListOwnEvents(context.Background())
	assert.Error(t, err)
}
