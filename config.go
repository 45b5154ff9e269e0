package larch

import (
	"time"

	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// StorageType names the backend that holds the benchmark document.
type StorageType string

const (
	StorageFile    StorageType = "file"
	StorageBucket  StorageType = "bucket"
	StorageMongoDB StorageType = "mongodb"
)

func (t StorageType) Validate() error {
	switch t {
	case StorageFile, StorageBucket, StorageMongoDB:
		return nil
	default:
		return errors.Errorf("invalid storage type '%s'", t)
	}
}

const (
	defaultMongoDBURI         = "mongodb://localhost:27017"
	defaultMongoDBDialTimeout = 2 * time.Second
	defaultDatabaseName       = "larch"
	defaultBucketKey          = "data.json"
	defaultServicePort        = 3000
	defaultQueueSize          = 1024
	defaultIngestTimeout      = time.Minute
)

// Configuration defines the settings of the larch application.
type Configuration struct {
	RepoURL      string              `yaml:"repo_url"`
	Storage      StorageConfig       `yaml:"storage"`
	Detector     perf.DetectorConfig `yaml:"detector"`
	ChangePoints ChangePointConfig   `yaml:"change_points"`
	Service      ServiceConfig       `yaml:"service"`
}

type StorageConfig struct {
	Type StorageType `yaml:"type"`

	// Path and Format locate a document on the local file system.
	Path        string               `yaml:"path"`
	Format      model.DocumentFormat `yaml:"format,omitempty"`
	LockTimeout time.Duration        `yaml:"lock_timeout,omitempty"`

	Bucket  BucketConfig  `yaml:"bucket,omitempty"`
	MongoDB MongoDBConfig `yaml:"mongodb,omitempty"`
}

type BucketConfig struct {
	Type   model.PailType `yaml:"type"`
	Name   string         `yaml:"name"`
	Prefix string         `yaml:"prefix,omitempty"`
	Region string         `yaml:"region,omitempty"`
	Key    string         `yaml:"key"`
}

type MongoDBConfig struct {
	URI         string               `yaml:"uri"`
	Database    string               `yaml:"database"`
	Collection  string               `yaml:"collection,omitempty"`
	Key         string               `yaml:"key"`
	Format      model.DocumentFormat `yaml:"format,omitempty"`
	DialTimeout time.Duration        `yaml:"dial_timeout,omitempty"`
}

type ChangePointConfig struct {
	// Algorithm is either e_divisive_means or e_divisive_with_medians.
	Algorithm    string  `yaml:"algorithm"`
	PValue       float64 `yaml:"pvalue"`
	Permutations int     `yaml:"permutations"`
	Seed         int64   `yaml:"seed"`
	// MinSize is the shortest segment e_divisive_with_medians reports.
	MinSize int `yaml:"min_size,omitempty"`
}

type ServiceConfig struct {
	Port      int `yaml:"port"`
	QueueSize int `yaml:"queue_size,omitempty"`
	// IngestTimeout bounds how long a REST ingestion waits for its queued
	// job to start. A job that has not started by then is abandoned.
	IngestTimeout time.Duration `yaml:"ingest_timeout,omitempty"`
}

// NewConfiguration returns a configuration storing the document in a local
// file at the default path, with default detector settings.
func NewConfiguration() *Configuration {
	return &Configuration{
		Storage: StorageConfig{
			Type: StorageFile,
			Path: DefaultDocumentPath,
		},
		Detector: perf.DefaultDetectorConfig(),
		ChangePoints: ChangePointConfig{
			Algorithm:    perf.EDivisiveMeans,
			PValue:       perf.DefaultChangePointPValue,
			Permutations: perf.DefaultChangePointPermutations,
			Seed:         perf.DefaultChangePointSeed,
		},
		Service: ServiceConfig{
			Port:          defaultServicePort,
			QueueSize:     defaultQueueSize,
			IngestTimeout: defaultIngestTimeout,
		},
	}
}

// LoadConfiguration reads a YAML configuration file. Settings missing from
// the file keep their defaults.
func LoadConfiguration(path string) (*Configuration, error) {
	conf := NewConfiguration()
	if err := utility.ReadYAMLFile(path, conf); err != nil {
		return nil, errors.Wrapf(err, "reading configuration file '%s'", path)
	}

	if err := conf.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in '%s'", path)
	}

	return conf, nil
}

// Export renders the configuration as YAML.
func (c *Configuration) Export() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "problem marshalling configuration")
	}
	return out, nil
}

func (c *Configuration) Validate() error {
	catcher := grip.NewBasicCatcher()

	if c.Storage.Type == "" {
		c.Storage.Type = StorageFile
	}
	catcher.Add(c.Storage.Type.Validate())

	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.Path == "" {
			c.Storage.Path = DefaultDocumentPath
		}
		if c.Storage.Format == "" {
			c.Storage.Format = model.FormatForPath(c.Storage.Path)
		}
		catcher.Add(c.Storage.Format.Validate())
	case StorageBucket:
		bucket := &c.Storage.Bucket
		catcher.Add(bucket.Type.Validate())
		catcher.NewWhen(bucket.Name == "", "must specify a bucket name")
		if bucket.Key == "" {
			bucket.Key = defaultBucketKey
		}
	case StorageMongoDB:
		mdb := &c.Storage.MongoDB
		if mdb.URI == "" {
			mdb.URI = defaultMongoDBURI
		}
		if mdb.Database == "" {
			mdb.Database = defaultDatabaseName
		}
		if mdb.DialTimeout <= 0 {
			mdb.DialTimeout = defaultMongoDBDialTimeout
		}
		if mdb.Format == "" {
			mdb.Format = model.FormatJSON
		}
		catcher.NewWhen(mdb.Key == "" && c.RepoURL == "", "must specify a document key or a repository url")
		if mdb.Key == "" {
			mdb.Key = c.RepoURL
		}
		catcher.Add(mdb.Format.Validate())
	}

	catcher.Wrap(c.Detector.Validate(), "invalid detector configuration")

	if c.ChangePoints.Algorithm == "" {
		c.ChangePoints.Algorithm = perf.EDivisiveMeans
	}
	if c.ChangePoints.MinSize == 0 {
		c.ChangePoints.MinSize = perf.DefaultMedianMinSize
	}
	catcher.ErrorfWhen(c.ChangePoints.Algorithm != perf.EDivisiveMeans && c.ChangePoints.Algorithm != perf.EDivisiveMedians,
		"invalid change point algorithm '%s'", c.ChangePoints.Algorithm)
	catcher.ErrorfWhen(c.ChangePoints.MinSize < 0,
		"change point minimum segment size %d must not be negative", c.ChangePoints.MinSize)
	if c.ChangePoints.PValue == 0 {
		c.ChangePoints.PValue = perf.DefaultChangePointPValue
	}
	if c.ChangePoints.Permutations == 0 {
		c.ChangePoints.Permutations = perf.DefaultChangePointPermutations
	}
	catcher.ErrorfWhen(c.ChangePoints.PValue <= 0 || c.ChangePoints.PValue >= 1,
		"change point p-value %g must be in (0, 1)", c.ChangePoints.PValue)
	catcher.ErrorfWhen(c.ChangePoints.Permutations < 0,
		"change point permutations %d must not be negative", c.ChangePoints.Permutations)

	if c.Service.Port == 0 {
		c.Service.Port = defaultServicePort
	}
	if c.Service.QueueSize <= 0 {
		c.Service.QueueSize = defaultQueueSize
	}
	if c.Service.IngestTimeout <= 0 {
		c.Service.IngestTimeout = defaultIngestTimeout
	}
	catcher.ErrorfWhen(c.Service.Port < 0 || c.Service.Port > 65535, "invalid service port %d", c.Service.Port)

	return catcher.Resolve()
}
