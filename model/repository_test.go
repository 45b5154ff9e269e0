package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testRepoURL = "https://github.com/example/repo"

type RepositorySuite struct {
	ctx    context.Context
	cancel context.CancelFunc
	path   string
	repo   *Repository
	suite.Suite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.path = filepath.Join(s.T().TempDir(), "data.js")

	backend, err := NewFileBackend(FileOptions{Path: s.path})
	s.Require().NoError(err)
	s.repo, err = NewRepository(backend, testRepoURL)
	s.Require().NoError(err)
	s.repo.now = func() time.Time { return time.UnixMilli(1000) }
}

func (s *RepositorySuite) TearDownTest() {
	s.cancel()
}

func (s *RepositorySuite) appendAndPersist(suiteName string, entries ...Entry) *HistoryStore {
	store, err := s.repo.Load(s.ctx, suiteName)
	s.Require().NoError(err)
	for _, e := range entries {
		store, err = store.Append(e)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.repo.Persist(s.ctx, store))
	return store
}

func (s *RepositorySuite) TestLoadMissingDocument() {
	store, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.True(store.IsEmpty())
	s.Zero(store.LastUpdate)
	s.Equal(testSuiteName, store.Suite)

	doc, rev, err := s.repo.LoadDocument(s.ctx)
	s.Require().NoError(err)
	s.Empty(rev)
	s.Equal(testRepoURL, doc.RepoURL)
	s.Zero(doc.Entries.Len())
}

func (s *RepositorySuite) TestLoadAll() {
	stores, err := s.repo.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(stores)

	s.appendAndPersist("zeta", testEntry("a", 100))
	s.appendAndPersist("alpha", testEntry("b", 200), testEntry("c", 300))

	stores, err = s.repo.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stores, 2)
	s.Equal("zeta", stores[0].Suite)
	s.Equal(1, stores[0].Len())
	s.Equal("alpha", stores[1].Suite)
	s.EqualValues(300, stores[1].LastUpdate)

	next, err := stores[1].Append(testEntry("d", 400))
	s.Require().NoError(err)
	s.NoError(s.repo.Persist(s.ctx, next))
}

func (s *RepositorySuite) TestLoadRequiresSuite() {
	_, err := s.repo.Load(s.ctx, "")
	s.Error(err)
}

func (s *RepositorySuite) TestRoundTrip() {
	distinct := true
	first := testEntry("a", 100)
	first.Commit.Distinct = &distinct
	second := testEntry("b", 200, Measurement{Name: "load_1min", Value: 1.25, Unit: "iter/sec", Extra: "mean: 800 nsec\nrounds: 5"})

	persisted := s.appendAndPersist(testSuiteName, first, second)

	loaded, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.Empty(cmp.Diff(persisted.Entries, loaded.Entries))
	s.Equal(persisted.LastUpdate, loaded.LastUpdate)
	s.Equal([]string{"a", "b"}, entryIDs(loaded))
}

func (s *RepositorySuite) TestLastUpdateIsMaxDate() {
	s.appendAndPersist(testSuiteName, testEntry("a", 100), testEntry("b", 250))

	loaded, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.EqualValues(250, loaded.LastUpdate)

	doc, _, err := s.repo.LoadDocument(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1000, doc.LastUpdate)

	s.appendAndPersist(testSuiteName, testEntry("c", 5000))
	doc, _, err = s.repo.LoadDocument(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(5000, doc.LastUpdate)
}

func (s *RepositorySuite) TestWritesScriptDocument() {
	s.appendAndPersist(testSuiteName, testEntry("a", 100))

	data, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(data), "window.BENCHMARK_DATA = {\n"))
	s.Contains(string(data), `"repoUrl": "`+testRepoURL+`"`)
}

func (s *RepositorySuite) TestPersistAgainAfterSuccess() {
	store := s.appendAndPersist(testSuiteName, testEntry("a", 100))

	store, err := store.Append(testEntry("b", 200))
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Persist(s.ctx, store))

	loaded, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, entryIDs(loaded))
}

func (s *RepositorySuite) TestStaleSnapshotIsRejected() {
	s.appendAndPersist(testSuiteName, testEntry("a", 100))

	first, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	second, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)

	first, err = first.Append(testEntry("b", 200))
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Persist(s.ctx, first))

	second, err = second.Append(testEntry("c", 300))
	s.Require().NoError(err)
	err = s.repo.Persist(s.ctx, second)
	s.Require().Error(err)
	s.True(IsConcurrentModification(err))

	loaded, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, entryIDs(loaded))
}

func (s *RepositorySuite) TestOtherSuitesDoNotConflict() {
	pytest, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)

	s.appendAndPersist("Go Benchmark", testEntry("g", 100))

	pytest, err = pytest.Append(testEntry("p", 150))
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Persist(s.ctx, pytest))

	doc, _, err := s.repo.LoadDocument(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Go Benchmark", testSuiteName}, doc.Entries.Names())
}

func (s *RepositorySuite) TestBackfillPersists() {
	store := s.appendAndPersist(testSuiteName, testEntry("a", 100), testEntry("c", 300))

	store = store.Insert(testEntry("b", 200))
	s.Require().NoError(s.repo.Persist(s.ctx, store))

	loaded, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b", "c"}, entryIDs(loaded))
}

func (s *RepositorySuite) TestUnorderedStoreIsNotPersisted() {
	store := NewHistoryStore(testSuiteName)
	store.Entries = []Entry{testEntry("a", 200), testEntry("b", 100)}

	err := s.repo.Persist(s.ctx, store)
	s.Require().Error(err)
	s.True(IsCorruptStore(err))

	_, err = os.Stat(s.path)
	s.True(os.IsNotExist(err))
}

func (s *RepositorySuite) TestPersistRequiresSuite() {
	s.Error(s.repo.Persist(s.ctx, nil))
	s.Error(s.repo.Persist(s.ctx, NewHistoryStore("")))
}

func (s *RepositorySuite) TestCorruptDocument() {
	s.Require().NoError(os.WriteFile(s.path, []byte("window.BENCHMARK_DATA = {\"entries\": "), 0644))

	_, err := s.repo.Load(s.ctx, testSuiteName)
	s.Require().Error(err)
	s.True(IsCorruptStore(err))

	store := NewHistoryStore(testSuiteName)
	store, err = store.Append(testEntry("a", 1))
	s.Require().NoError(err)
	s.True(IsCorruptStore(s.repo.Persist(s.ctx, store)))
}

func TestNewRepository(t *testing.T) {
	_, err := NewRepository(nil, testRepoURL)
	assert.Error(t, err)

	backend, err := NewFileBackend(FileOptions{Path: filepath.Join(t.TempDir(), "data.json")})
	require.NoError(t, err)
	repo, err := NewRepository(backend, "")
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestDocumentLastUpdate(t *testing.T) {
	doc := NewDocument(testRepoURL)
	assert.EqualValues(t, 10, documentLastUpdate(doc, 10))

	doc.LastUpdate = 20
	assert.EqualValues(t, 20, documentLastUpdate(doc, 10))

	doc.Entries.Set("s", []Entry{testEntry("a", 30)})
	assert.EqualValues(t, 30, documentLastUpdate(doc, 10))
	assert.EqualValues(t, 40, documentLastUpdate(doc, 40))
}
