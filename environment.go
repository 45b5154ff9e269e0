package larch

import (
	"context"
	"sync"

	"github.com/evergreen-ci/larch/ingest"
	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Environment objects provide access to shared configuration and state for
// one invocation of the application. There is no process-wide environment:
// every command builds its own with NewEnvironment and closes it when done.
type Environment interface {
	GetConf() *Configuration
	// GetRepository returns the repository reading and writing the
	// configured benchmark document.
	GetRepository() *model.Repository
	// GetIngestService returns the service that records new entries.
	GetIngestService() *ingest.Service
	GetChangeDetector() perf.ChangeDetector
	// GetQueue returns the single-worker queue through which the REST
	// service serializes ingestion. Starting it is up to the caller.
	GetQueue() amboy.Queue
	Close(context.Context) error
}

type envState struct {
	name     string
	conf     *Configuration
	repo     *model.Repository
	service  *ingest.Service
	detector perf.ChangeDetector
	queue    amboy.Queue
	client   *mongo.Client
	mutex    sync.RWMutex
}

// NewEnvironment validates conf and connects to the configured storage.
func NewEnvironment(ctx context.Context, name string, conf *Configuration) (Environment, error) {
	if conf == nil {
		return nil, errors.New("must specify a configuration")
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	env := &envState{name: name, conf: conf}

	backend, err := env.makeBackend(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "problem configuring storage")
	}

	env.repo, err = model.NewRepository(backend, conf.RepoURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	env.service, err = ingest.NewService(env.repo, conf.Detector)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	env.detector, err = newChangeDetector(conf.ChangePoints)
	if err != nil {
		return nil, errors.Wrap(err, "problem configuring change point detection")
	}

	env.queue = queue.NewLocalLimitedSize(1, conf.Service.QueueSize)

	grip.Info(message.Fields{
		"message":  "configured environment",
		"name":     name,
		"storage":  conf.Storage.Type,
		"format":   backend.Format(),
		"repo_url": conf.RepoURL,
	})

	return env, nil
}

func (e *envState) makeBackend(ctx context.Context) (model.Backend, error) {
	storage := e.conf.Storage

	switch storage.Type {
	case StorageFile:
		return model.NewFileBackend(model.FileOptions{
			Path:        storage.Path,
			Format:      storage.Format,
			LockTimeout: storage.LockTimeout,
		})
	case StorageBucket:
		opts := model.BucketOptions{
			Type:   storage.Bucket.Type,
			Name:   storage.Bucket.Name,
			Prefix: storage.Bucket.Prefix,
			Region: storage.Bucket.Region,
			Key:    storage.Bucket.Key,
		}
		bucket, err := opts.Type.Create(ctx, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "problem creating %s bucket '%s'", opts.Type, opts.Name)
		}
		return model.NewBucketBackend(bucket, opts.Key)
	case StorageMongoDB:
		mdb := storage.MongoDB

		connectCtx, cancel := context.WithTimeout(ctx, mdb.DialTimeout)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mdb.URI).SetConnectTimeout(mdb.DialTimeout))
		if err != nil {
			return nil, errors.Wrapf(err, "could not connect to db %s", mdb.URI)
		}
		if err = client.Ping(connectCtx, nil); err != nil {
			grip.Warning(message.WrapError(client.Disconnect(ctx), message.Fields{
				"message": "problem disconnecting after failed ping",
				"uri":     mdb.URI,
			}))
			return nil, errors.Wrapf(err, "could not reach db %s", mdb.URI)
		}
		e.client = client

		return model.NewMongoBackend(client, model.MongoOptions{
			Database:   mdb.Database,
			Collection: mdb.Collection,
			Key:        mdb.Key,
			Format:     mdb.Format,
		})
	default:
		return nil, errors.Errorf("storage type '%s' not implemented", storage.Type)
	}
}

func (e *envState) GetConf() *Configuration {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	// copy the struct
	out := &Configuration{}
	*out = *e.conf

	return out
}

func (e *envState) GetRepository() *model.Repository {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.repo
}

func (e *envState) GetIngestService() *ingest.Service {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.service
}

func (e *envState) GetChangeDetector() perf.ChangeDetector {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.detector
}

func (e *envState) GetQueue() amboy.Queue {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.queue
}

func (e *envState) Close(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	catcher := grip.NewBasicCatcher()
	if e.client != nil {
		catcher.Wrap(e.client.Disconnect(ctx), "problem disconnecting from db")
		e.client = nil
	}

	grip.Debug(message.Fields{
		"message": "closed environment",
		"name":    e.name,
	})

	return catcher.Resolve()
}

func newChangeDetector(conf ChangePointConfig) (perf.ChangeDetector, error) {
	switch conf.Algorithm {
	case perf.EDivisiveMedians:
		return perf.NewEDMDetector(conf.MinSize)
	case perf.EDivisiveMeans, "":
		return perf.NewEDivisiveDetector(conf.PValue, conf.Permutations, conf.Seed)
	default:
		return nil, errors.Errorf("unknown change point algorithm '%s'", conf.Algorithm)
	}
}
