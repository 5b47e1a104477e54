// Package services holds the provisioner's business logic: creation of the
// per-event sub-collections and the job ledger around it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appwrite/sdk-for-go/permission"
	"github.com/appwrite/sdk-for-go/role"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/idgen"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// attributeSize is the length of every sub-collection string attribute.
const attributeSize = 50

// SchemaAdmin is the privileged store surface provisioning needs.
type SchemaAdmin interface {
	CreateCollection(ctx context.Context, databaseID, collectionID, name string, permissions []string, documentSecurity bool) (*appwrite.Collection, error)
	DeleteCollection(ctx context.Context, databaseID, collectionID string) error
	CreateStringAttribute(ctx context.Context, databaseID, collectionID string, attr appwrite.StringAttribute) (*appwrite.Attribute, error)
	GetAttribute(ctx context.Context, databaseID, collectionID, key string) (*appwrite.Attribute, error)
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]any, permissions []string) (*appwrite.Document, error)
}

var _ SchemaAdmin = (*appwrite.AdminClient)(nil)

// ProvisioningConfig locates the sub-collection databases and bounds the
// wait for attributes.
type ProvisioningConfig struct {
	RegistrationDatabaseID string
	SponsorDatabaseID      string
	PollInterval           time.Duration
	PollTimeout            time.Duration
}

// ProvisioningService creates the registration and sponsor sub-collections
// of an event. Both operations can be repeated safely.
type ProvisioningService struct {
	admin SchemaAdmin
	cfg   ProvisioningConfig
	log   logging.Logger
	newID func() string
}

func NewProvisioningService(admin SchemaAdmin, cfg ProvisioningConfig, log logging.Logger) *ProvisioningService {
	return &ProvisioningService{
		admin: admin,
		cfg:   cfg,
		log:   log.With("module", "provisioning"),
		newID: idgen.Unique,
	}
}

var registrationAttributes = []appwrite.StringAttribute{
	{Key: "name", Size: attributeSize},
	{Key: "email", Size: attributeSize},
	{Key: "confirm", Size: attributeSize, Default: ptr("")},
}

var sponsorAttributes = []appwrite.StringAttribute{
	{Key: "name", Size: models.SponsorFieldMax},
	{Key: "url", Size: models.SponsorFieldMax},
}

func ptr(s string) *string { return &s }

// Provision runs both operations for task.
func (s *ProvisioningService) Provision(ctx context.Context, task models.ProvisionTask) error {
	if err := s.CreateRegistrationCollection(ctx, task.EventID, task.EventName); err != nil {
		return err
	}
	return s.CreateSponsorCollection(ctx, task.EventID, task.EventName, task.Sponsors, task.OwnerID)
}

// CreateRegistrationCollection creates the collection participants register
// into. Anyone may read, create, update and delete its documents. An
// existing collection or attribute counts as success.
func (s *ProvisioningService) CreateRegistrationCollection(ctx context.Context, eventID, eventName string) error {
	db := s.cfg.RegistrationDatabaseID
	anyone := role.Any()
	perms := []string{
		permission.Read(anyone),
		permission.Create(anyone),
		permission.Update(anyone),
		permission.Delete(anyone),
	}

	if _, err := s.admin.CreateCollection(ctx, db, eventID, eventName, perms, false); err != nil {
		if !errors.Is(err, common.ErrAlreadyExists) {
			return fmt.Errorf("registration collection: %w", err)
		}
		s.log.Debug(ctx, "registration collection exists", "event_id", eventID)
	}

	if err := s.createAttributes(ctx, db, eventID, registrationAttributes); err != nil {
		return fmt.Errorf("registration attributes: %w", err)
	}
	s.log.Info(ctx, "registration collection ready", "event_id", eventID)
	return nil
}

// CreateSponsorCollection creates the sponsor list of an event and writes
// one document per sponsor in order. Anyone may read it; only ownerID may
// change it.
//
// A collection left by an earlier attempt is dropped first so rows are
// never duplicated. When a row cannot be written the collection is dropped
// again, so a failed call leaves no sponsor rows behind.
func (s *ProvisioningService) CreateSponsorCollection(ctx context.Context, eventID, eventName string, sponsors []models.Sponsor, ownerID string) error {
	db := s.cfg.SponsorDatabaseID
	owner := role.User(ownerID, "")
	perms := []string{
		permission.Read(role.Any()),
		permission.Create(owner),
		permission.Update(owner),
		permission.Delete(owner),
	}

	if err := s.createFreshCollection(ctx, db, eventID, eventName, perms); err != nil {
		return fmt.Errorf("sponsor collection: %w", err)
	}

	if err := s.createAttributes(ctx, db, eventID, sponsorAttributes); err != nil {
		return fmt.Errorf("sponsor attributes: %w", err)
	}
	if len(sponsors) == 0 {
		s.log.Info(ctx, "sponsor collection ready", "event_id", eventID, "sponsors", 0)
		return nil
	}

	for _, a := range sponsorAttributes {
		if err := s.waitAvailable(ctx, db, eventID, a.Key); err != nil {
			return fmt.Errorf("sponsor attribute %s: %w", a.Key, err)
		}
	}

	for i, sp := range sponsors {
		data := map[string]any{"name": sp.Name, "url": sp.URL}
		if _, err := s.admin.CreateDocument(ctx, db, eventID, s.newID(), data, nil); err != nil {
			s.compensate(ctx, db, eventID)
			return fmt.Errorf("sponsor %d of %d: %w", i+1, len(sponsors), err)
		}
	}
	s.log.Info(ctx, "sponsor collection ready", "event_id", eventID, "sponsors", len(sponsors))
	return nil
}

func (s *ProvisioningService) createFreshCollection(ctx context.Context, db, id, name string, perms []string) error {
	_, err := s.admin.CreateCollection(ctx, db, id, name, perms, false)
	if err == nil || !errors.Is(err, common.ErrAlreadyExists) {
		return err
	}

	s.log.Info(ctx, "replacing sponsor collection from an earlier attempt", "event_id", id)
	if err := s.admin.DeleteCollection(ctx, db, id); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	_, err = s.admin.CreateCollection(ctx, db, id, name, perms, false)
	return err
}

func (s *ProvisioningService) createAttributes(ctx context.Context, db, collectionID string, attrs []appwrite.StringAttribute) error {
	for _, a := range attrs {
		if _, err := s.admin.CreateStringAttribute(ctx, db, collectionID, a); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
			return fmt.Errorf("%s: %w", a.Key, err)
		}
	}
	return nil
}

var errAttributeProcessing = errors.New("attribute is still processing")

// waitAvailable polls an attribute until the store reports it available.
func (s *ProvisioningService) waitAvailable(ctx context.Context, db, collectionID, key string) error {
	b := retry.WithMaxDuration(s.cfg.PollTimeout, retry.NewConstant(s.cfg.PollInterval))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		a, err := s.admin.GetAttribute(ctx, db, collectionID, key)
		if err != nil {
			if common.IsTemporary(err) || errors.Is(err, common.ErrorNotFound) {
				return retry.RetryableError(err)
			}
			return err
		}
		switch a.Status {
		case appwrite.AttributeAvailable:
			return nil
		case appwrite.AttributeFailed:
			return fmt.Errorf("attribute failed: %s", a.Error)
		default:
			return retry.RetryableError(errAttributeProcessing)
		}
	})
}

// compensate drops a half-filled sponsor collection. Its failure is only
// logged; the next attempt replaces the collection anyway.
func (s *ProvisioningService) compensate(ctx context.Context, db, collectionID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.admin.DeleteCollection(ctx, db, collectionID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "compensation failed", "event_id", collectionID, "error", err)
		return
	}
	s.log.Warn(ctx, "sponsor collection removed after failed write", "event_id", collectionID)
}
