package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evergreen-ci/pail"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const testMongoURI = "mongodb://localhost:27017"

// testBackendContract checks the read and conditional write semantics every
// Backend must provide.
func testBackendContract(ctx context.Context, t *testing.T, backend Backend) {
	t.Run("MissingDocument", func(t *testing.T) {
		data, rev, err := backend.Read(ctx)
		assert.Equal(t, ErrDocumentNotFound, err)
		assert.Nil(t, data)
		assert.Empty(t, rev)
	})
	t.Run("ConditionalWrites", func(t *testing.T) {
		first, err := backend.Write(ctx, []byte("first"), "")
		require.NoError(t, err)
		assert.NotEmpty(t, first)

		data, rev, err := backend.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
		assert.Equal(t, first, rev)

		_, err = backend.Write(ctx, []byte("create again"), "")
		assert.Equal(t, ErrRevisionMismatch, err)

		second, err := backend.Write(ctx, []byte("second"), first)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		_, err = backend.Write(ctx, []byte("stale"), first)
		assert.Equal(t, ErrRevisionMismatch, err)

		data, rev, err = backend.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
		assert.Equal(t, second, rev)
	})
}

func TestFileBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("Contract", func(t *testing.T) {
		backend, err := NewFileBackend(FileOptions{Path: filepath.Join(t.TempDir(), "data.js")})
		require.NoError(t, err)
		assert.Equal(t, FormatJS, backend.Format())
		testBackendContract(ctx, t, backend)
	})
	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := NewFileBackend(FileOptions{})
		assert.Error(t, err)
		_, err = NewFileBackend(FileOptions{Path: "data.json", Format: "xml"})
		assert.Error(t, err)
	})
	t.Run("CreatesDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dev", "bench", "data.json")
		backend, err := NewFileBackend(FileOptions{Path: path})
		require.NoError(t, err)

		_, err = backend.Write(ctx, []byte("{}"), "")
		require.NoError(t, err)
		_, err = os.Stat(path)
		assert.NoError(t, err)
		_, err = os.Stat(path + ".lock")
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("HeldLockTimesOut", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path+".lock", []byte("other"), 0644))

		backend, err := NewFileBackend(FileOptions{Path: path, LockTimeout: 100 * time.Millisecond})
		require.NoError(t, err)

		_, err = backend.Write(ctx, []byte("{}"), "")
		require.Error(t, err)
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("StaleLockIsRemoved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path+".lock", []byte("crashed"), 0644))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(path+".lock", old, old))

		backend, err := NewFileBackend(FileOptions{Path: path, LockTimeout: time.Second, StaleLockAge: time.Minute})
		require.NoError(t, err)

		_, err = backend.Write(ctx, []byte("{}"), "")
		assert.NoError(t, err)
	})
}

// captureWarnings routes grip output to an internal sender for the rest of
// the test and returns a function listing the logged messages. The internal
// sender renders every message it receives, so only code that logs non-nil
// errors may run while it is installed.
func captureWarnings(t *testing.T) func() []string {
	sender, err := send.NewInternalLogger("larch-test", send.LevelInfo{Default: level.Info, Threshold: level.Debug})
	require.NoError(t, err)

	previous := grip.GetSender()
	require.NoError(t, grip.SetSender(sender))
	t.Cleanup(func() { assert.NoError(t, grip.SetSender(previous)) })

	return func() []string {
		var out []string
		for sender.HasMessage() {
			if m := sender.GetMessage(); m.Logged && m.Message.Loggable() {
				out = append(out, m.Rendered)
			}
		}
		return out
	}
}

func containsMessage(messages []string, text string) bool {
	for _, m := range messages {
		if strings.Contains(m, text) {
			return true
		}
	}
	return false
}

func TestLockFileHelpers(t *testing.T) {
	t.Run("WriteLockOwnerLogsFailures", func(t *testing.T) {
		logged := captureWarnings(t)

		path := filepath.Join(t.TempDir(), "data.json.lock")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		writeLockOwner(f, path)
		messages := logged()
		assert.True(t, containsMessage(messages, "problem writing lock owner"), "%v", messages)
		assert.True(t, containsMessage(messages, "problem closing lock file"), "%v", messages)
	})
	t.Run("WriteLockOwnerRecordsOwner", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json.lock")
		f, err := os.Create(path)
		require.NoError(t, err)

		writeLockOwner(f, path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})
	t.Run("RemoveStaleLockLogsFailures", func(t *testing.T) {
		logged := captureWarnings(t)

		// a non-empty directory cannot be removed with os.Remove
		path := filepath.Join(t.TempDir(), "data.json.lock")
		require.NoError(t, os.MkdirAll(filepath.Join(path, "held"), 0755))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		removeStaleLock(path, time.Minute)
		messages := logged()
		assert.True(t, containsMessage(messages, "removing stale lock file"), "%v", messages)
		assert.True(t, containsMessage(messages, "problem removing stale lock file"), "%v", messages)
	})
	t.Run("RemoveStaleLockKeepsFreshLock", func(t *testing.T) {
		logged := captureWarnings(t)

		path := filepath.Join(t.TempDir(), "data.json.lock")
		require.NoError(t, os.WriteFile(path, []byte("writer"), 0644))

		removeStaleLock(path, time.Minute)
		assert.Empty(t, logged())
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestBucketBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("Contract", func(t *testing.T) {
		bucket, err := PailLocal.Create(ctx, BucketOptions{Name: t.TempDir(), Prefix: "benchmarks"})
		require.NoError(t, err)

		backend, err := NewBucketBackend(bucket, "data.json")
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, backend.Format())
		testBackendContract(ctx, t, backend)
	})
	t.Run("ScriptKey", func(t *testing.T) {
		bucket, err := pail.NewLocalBucket(pail.LocalOptions{Path: t.TempDir()})
		require.NoError(t, err)

		backend, err := NewBucketBackend(bucket, "dev/bench/data.js")
		require.NoError(t, err)
		assert.Equal(t, FormatJS, backend.Format())
	})
	t.Run("InvalidArguments", func(t *testing.T) {
		_, err := NewBucketBackend(nil, "data.json")
		assert.Error(t, err)

		bucket, err := pail.NewLocalBucket(pail.LocalOptions{Path: t.TempDir()})
		require.NoError(t, err)
		_, err = NewBucketBackend(bucket, "")
		assert.Error(t, err)
	})
	t.Run("InvalidType", func(t *testing.T) {
		assert.Error(t, PailType("gcs").Validate())
		_, err := PailType("gcs").Create(ctx, BucketOptions{Name: t.TempDir()})
		assert.Error(t, err)
	})
}

func TestMongoBackend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 2*time.Second)
	defer connectCancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(testMongoURI).SetServerSelectionTimeout(2*time.Second))
	require.NoError(t, err)
	defer func() { assert.NoError(t, client.Disconnect(ctx)) }()
	if err = client.Ping(connectCtx, nil); err != nil {
		t.Skipf("mongod is not available at %s: %s", testMongoURI, err)
	}

	opts := MongoOptions{Database: "larch_test", Key: utility.RandomString()}
	defer func() {
		_, err := client.Database(opts.Database).Collection(defaultDocumentCollection).DeleteOne(ctx, bson.M{"_id": opts.Key})
		assert.NoError(t, err)
	}()

	t.Run("Contract", func(t *testing.T) {
		backend, err := NewMongoBackend(client, opts)
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, backend.Format())
		testBackendContract(ctx, t, backend)
	})
	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := NewMongoBackend(nil, opts)
		assert.Error(t, err)
		_, err = NewMongoBackend(client, MongoOptions{Key: "repo"})
		assert.Error(t, err)
		_, err = NewMongoBackend(client, MongoOptions{Database: "larch_test"})
		assert.Error(t, err)
	})
	t.Run("MalformedRevision", func(t *testing.T) {
		backend, err := NewMongoBackend(client, opts)
		require.NoError(t, err)
		_, err = backend.Write(ctx, []byte("{}"), "abc")
		assert.Error(t, err)
		assert.NotEqual(t, ErrRevisionMismatch, err)
	})
}
