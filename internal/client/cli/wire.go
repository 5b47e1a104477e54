package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/client/config"
	"github.com/dmitrijs2005/secnexus/internal/client/identity"
	"github.com/dmitrijs2005/secnexus/internal/client/localdb"
	"github.com/dmitrijs2005/secnexus/internal/client/provisioning"
	"github.com/dmitrijs2005/secnexus/internal/client/services"
	"github.com/dmitrijs2005/secnexus/internal/client/storage"
	"github.com/dmitrijs2005/secnexus/internal/logging"
)

// NewApp is the production Builder: local state, Identity Service client,
// store client, banner bucket and a broker that connects on first use.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	a := newApp(cfg, log)

	db, err := localdb.Open(ctx, cfg.StatePath)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return db.Close() })

	idp := identity.NewClient(identity.Config{
		APIKey:           cfg.Identity.APIKey,
		IdentityEndpoint: cfg.Identity.IdentityEndpoint,
		TokenEndpoint:    cfg.Identity.TokenEndpoint,
	})
	var provider services.ProviderAuthorizer
	if cfg.GoogleEnabled() {
		provider = identity.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.Timeout, os.Stderr)
	}
	sessions := services.NewSessionService(idp, provider, db, log)
	a.sessions = sessions

	store := appwrite.NewPublicClient(appwrite.Config{Endpoint: cfg.Store.Endpoint, Project: cfg.Store.Project})
	bucket, err := newBucket(ctx, cfg, store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	b := &lazyBroker{url: cfg.BrokerURL, log: log}
	a.onClose(func(context.Context) error { return b.Close() })
	a.outcomes = b

	dispatcher := provisioning.NewDispatcher(b, cfg.DispatchTimeout, log)
	a.onClose(dispatcher.Wait)

	a.events = services.NewEventService(sessions, bucket, store, dispatcher, services.EventLocation{
		DatabaseID:   cfg.Store.DatabaseID,
		CollectionID: cfg.Store.EventsCollectionID,
	}, log)

	return a, nil
}

func newBucket(ctx context.Context, cfg *config.Config, store *appwrite.PublicClient) (storage.Bucket, error) {
	switch cfg.BannerBackend {
	case config.BannerS3:
		return storage.NewS3Bucket(ctx, storage.S3Config{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			PublicURL: cfg.S3.PublicURL,
		})
	case config.BannerAppwrite:
		return storage.NewAppwriteBucket(store, cfg.Store.BannerBucketID), nil
	default:
		return nil, fmt.Errorf("unknown banner backend %q", cfg.BannerBackend)
	}
}

// openBroker dials the broker; tests replace it.
var openBroker = broker.Open

// lazyBroker opens the broker connection on first use so that commands
// which never publish do not need a reachable broker. A failed dial is not
// remembered; the next call dials again.
type lazyBroker struct {
	url string
	log logging.Logger

	mu     sync.Mutex
	b      broker.Broker
	closed bool
}

func (l *lazyBroker) get() (broker.Broker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, broker.ErrClosed
	}
	if l.b != nil {
		return l.b, nil
	}
	b, err := openBroker(l.url, l.log)
	if err != nil {
		return nil, err
	}
	l.b = b
	return b, nil
}

func (l *lazyBroker) Publish(ctx context.Context, subject string, payload any) error {
	b, err := l.get()
	if err != nil {
		return err
	}
	return b.Publish(ctx, subject, payload)
}

func (l *lazyBroker) Subscribe(subject, queue string, h broker.Handler) (func(), error) {
	b, err := l.get()
	if err != nil {
		return nil, err
	}
	return b.Subscribe(subject, queue, h)
}

// Close closes the connection if one was opened.
func (l *lazyBroker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.b == nil {
		return nil
	}
	return l.b.Close()
}
