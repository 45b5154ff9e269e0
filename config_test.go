package larch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evergreen-ci/larch/model"
	"github.com/evergreen-ci/larch/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "larch.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestConfigurationValidate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		conf := NewConfiguration()
		require.NoError(t, conf.Validate())
		assert.Equal(t, StorageFile, conf.Storage.Type)
		assert.Equal(t, DefaultDocumentPath, conf.Storage.Path)
		assert.Equal(t, model.FormatJS, conf.Storage.Format)
		assert.Equal(t, 0.1, conf.Detector.Threshold)
		assert.Equal(t, 3000, conf.Service.Port)
	})
	t.Run("EmptyIsFilled", func(t *testing.T) {
		conf := &Configuration{}
		require.NoError(t, conf.Validate())
		assert.Equal(t, StorageFile, conf.Storage.Type)
		assert.Equal(t, perf.DefaultChangePointPValue, conf.ChangePoints.PValue)
		assert.Equal(t, perf.DefaultChangePointPermutations, conf.ChangePoints.Permutations)
		assert.Equal(t, perf.EDivisiveMeans, conf.ChangePoints.Algorithm)
		assert.Equal(t, perf.DefaultMedianMinSize, conf.ChangePoints.MinSize)
		assert.Equal(t, perf.AggregateMean, conf.Detector.Aggregation)
		assert.Equal(t, defaultIngestTimeout, conf.Service.IngestTimeout)
	})
	t.Run("MongoDBDefaults", func(t *testing.T) {
		conf := &Configuration{RepoURL: "https://github.com/example/repo", Storage: StorageConfig{Type: StorageMongoDB}}
		require.NoError(t, conf.Validate())
		assert.Equal(t, defaultMongoDBURI, conf.Storage.MongoDB.URI)
		assert.Equal(t, defaultDatabaseName, conf.Storage.MongoDB.Database)
		assert.Equal(t, conf.RepoURL, conf.Storage.MongoDB.Key)
		assert.Equal(t, defaultMongoDBDialTimeout, conf.Storage.MongoDB.DialTimeout)
	})
	t.Run("BucketDefaults", func(t *testing.T) {
		conf := &Configuration{Storage: StorageConfig{Type: StorageBucket, Bucket: BucketConfig{Type: model.PailLocal, Name: "benchmarks"}}}
		require.NoError(t, conf.Validate())
		assert.Equal(t, defaultBucketKey, conf.Storage.Bucket.Key)
	})
	for name, conf := range map[string]*Configuration{
		"UnknownStorage":     {Storage: StorageConfig{Type: "ftp"}},
		"BadFormat":          {Storage: StorageConfig{Type: StorageFile, Format: "xml"}},
		"BucketWithoutName":  {Storage: StorageConfig{Type: StorageBucket, Bucket: BucketConfig{Type: model.PailS3}}},
		"BucketWithoutType":  {Storage: StorageConfig{Type: StorageBucket, Bucket: BucketConfig{Name: "benchmarks"}}},
		"MongoDBWithoutKey":  {Storage: StorageConfig{Type: StorageMongoDB}},
		"BadThreshold":       {Detector: perf.DetectorConfig{Threshold: 4}},
		"BadPValue":          {ChangePoints: ChangePointConfig{PValue: 1.5}},
		"UnknownAlgorithm":   {ChangePoints: ChangePointConfig{Algorithm: "pelt"}},
		"NegativeMinSize":    {ChangePoints: ChangePointConfig{MinSize: -2}},
		"NegativePermutated": {ChangePoints: ChangePointConfig{Permutations: -3}},
		"BadPort":            {Service: ServiceConfig{Port: 70000}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, conf.Validate())
		})
	}
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("ReadsFile", func(t *testing.T) {
		path := writeConfigFile(t, `
repo_url: https://github.com/example/repo
storage:
  type: file
  path: benchmarks/data.json
  lock_timeout: 30s
detector:
  threshold: 0.25
  window: 5
  aggregation: median
  units:
    iter/sec: higher_is_better
change_points:
  pvalue: 0.01
  permutations: 50
  seed: 42
service:
  port: 8080
`)
		conf, err := LoadConfiguration(path)
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/example/repo", conf.RepoURL)
		assert.Equal(t, "benchmarks/data.json", conf.Storage.Path)
		assert.Equal(t, model.FormatJSON, conf.Storage.Format)
		assert.Equal(t, 30*time.Second, conf.Storage.LockTimeout)
		assert.Equal(t, 0.25, conf.Detector.Threshold)
		assert.Equal(t, 5, conf.Detector.Window)
		assert.Equal(t, perf.AggregateMedian, conf.Detector.Aggregation)
		assert.Equal(t, perf.HigherIsBetter, conf.Detector.Units["iter/sec"])
		assert.Equal(t, 0.01, conf.ChangePoints.PValue)
		assert.EqualValues(t, 42, conf.ChangePoints.Seed)
		assert.Equal(t, 8080, conf.Service.Port)
	})
	t.Run("KeepsDefaults", func(t *testing.T) {
		conf, err := LoadConfiguration(writeConfigFile(t, "repo_url: https://github.com/example/repo\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultDocumentPath, conf.Storage.Path)
		assert.Equal(t, perf.DefaultUnitDirections(), conf.Detector.Units)
	})
	t.Run("KeepsExplicitZeroThreshold", func(t *testing.T) {
		conf, err := LoadConfiguration(writeConfigFile(t, "detector:\n  threshold: 0\n"))
		require.NoError(t, err)
		assert.Zero(t, conf.Detector.Threshold)
		assert.Equal(t, perf.AggregateMean, conf.Detector.Aggregation)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yml"))
		assert.Error(t, err)
	})
	t.Run("InvalidContents", func(t *testing.T) {
		_, err := LoadConfiguration(writeConfigFile(t, "detector:\n  aggregation: p99\n"))
		assert.Error(t, err)
	})
	t.Run("ExportRoundTrip", func(t *testing.T) {
		conf := NewConfiguration()
		conf.RepoURL = "https://github.com/example/repo"
		conf.Detector.Threshold = 0.3
		require.NoError(t, conf.Validate())

		out, err := conf.Export()
		require.NoError(t, err)
		assert.Contains(t, string(out), "repo_url: https://github.com/example/repo")

		loaded, err := LoadConfiguration(writeConfigFile(t, string(out)))
		require.NoError(t, err)
		assert.Equal(t, conf, loaded)
	})
}
