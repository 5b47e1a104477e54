package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appwrite/sdk-for-go/query"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/client/storage"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/idgen"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// SessionSource yields the tokens of the signed-in user.
type SessionSource interface {
	Session(ctx context.Context) (*models.Session, error)
}

// TaskDispatcher hands a provisioning task off without waiting for it.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task models.ProvisionTask)
}

// EventLocation names the collection events are stored in.
type EventLocation struct {
	DatabaseID   string
	CollectionID string
}

// EventService creates events: banner upload, record write, then hand-off
// of the sub-collection provisioning.
type EventService struct {
	sessions   SessionSource
	bucket     storage.Bucket
	docs       appwrite.Documents
	dispatcher TaskDispatcher
	loc        EventLocation
	log        logging.Logger
	newID      func() string
	now        func() time.Time
}

func NewEventService(sessions SessionSource, bucket storage.Bucket, docs appwrite.Documents, dispatcher TaskDispatcher, loc EventLocation, log logging.Logger) *EventService {
	return &EventService{
		sessions:   sessions,
		bucket:     bucket,
		docs:       docs,
		dispatcher: dispatcher,
		loc:        loc,
		log:        log.With("module", "events"),
		newID:      idgen.Unique,
		now:        time.Now,
	}
}

// CreateEvent stores a new event owned by the signed-in user and returns
// common.SuccessMarker once the record exists. Provisioning of the
// registration and sponsor sub-collections is only started, not awaited.
//
// Errors: *common.AuthError without a session, *common.StorageError when
// the banner is rejected, *common.DataError when the record is rejected.
func (s *EventService) CreateEvent(ctx context.Context, in models.EventInput, banner models.Banner, sponsors []models.Sponsor) (string, error) {
	sess, err := s.sessions.Session(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) {
			return "", &common.AuthError{Code: common.AuthNoCurrentUser, Message: "sign in to create events", Err: err}
		}
		return "", err
	}

	bannerURL, err := s.bucket.Upload(ctx, s.newID(), banner)
	if err != nil {
		return "", fmt.Errorf("upload banner: %w", err)
	}

	ev := models.NewEvent(in, bannerURL, sess.UserID)
	doc, err := s.docs.CreateDocument(ctx, s.loc.DatabaseID, s.loc.CollectionID, s.newID(), ev.Fields(), nil)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	s.log.Info(ctx, "event created", "event_id", doc.ID, "owner_id", sess.UserID)

	if sponsors == nil {
		sponsors = []models.Sponsor{}
	}
	s.dispatcher.Dispatch(ctx, models.ProvisionTask{
		EventID:     doc.ID,
		EventName:   in.Name,
		OwnerID:     sess.UserID,
		Sponsors:    sponsors,
		RequestedAt: s.now().UTC(),
	})

	return common.SuccessMarker, nil
}

// ListOwnEvents returns the events created by the signed-in user.
func (s *EventService) ListOwnEvents(ctx context.Context) ([]appwrite.Document, error) {
	sess, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.docs.ListDocuments(ctx, s.loc.DatabaseID, s.loc.CollectionID, query.Equal("created", sess.UserID), query.OrderAsc("eventdate"), query.Limit(100))
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}
