package model

import (
	"context"
	"fmt"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Repository loads and persists the benchmark document of one source
// repository through a Backend. It holds no cached state: every Load reads
// the backend and returns an independent snapshot.
type Repository struct {
	backend Backend
	repoURL string
	now     func() time.Time
}

// NewRepository returns a Repository writing documents for repoURL.
func NewRepository(backend Backend, repoURL string) (*Repository, error) {
	if backend == nil {
		return nil, errors.New("must specify a storage backend")
	}
	return &Repository{backend: backend, repoURL: repoURL, now: time.Now}, nil
}

// LoadDocument returns the whole persisted document along with its
// revision. A repository without a document yields an empty one.
func (r *Repository) LoadDocument(ctx context.Context) (*Document, Revision, error) {
	data, rev, err := r.backend.Read(ctx)
	if err == ErrDocumentNotFound {
		return NewDocument(r.repoURL), "", nil
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "reading benchmark document")
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	return doc, rev, nil
}

// Load returns the history of a suite. A suite that has never been
// recorded yields an empty store rather than an error.
func (r *Repository) Load(ctx context.Context, suite string) (*HistoryStore, error) {
	if suite == "" {
		return nil, errors.New("must specify a suite name")
	}

	doc, rev, err := r.LoadDocument(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "loading suite '%s'", suite)
	}

	entries, _ := doc.Entries.Get(suite)
	return newLoadedHistoryStore(suite, entries, rev), nil
}

// LoadAll returns the history of every suite in the document, in document
// order, from a single read.
func (r *Repository) LoadAll(ctx context.Context) ([]*HistoryStore, error) {
	doc, rev, err := r.LoadDocument(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading suites")
	}

	out := make([]*HistoryStore, 0, doc.Entries.Len())
	for _, suite := range doc.Entries.Names() {
		entries, _ := doc.Entries.Get(suite)
		out = append(out, newLoadedHistoryStore(suite, entries, rev))
	}
	return out, nil
}

// Persist writes the store back into the document. The write is rejected
// with a ConcurrentModificationError if the suite changed since the store
// was loaded, or if the document changed between the read and the write
// here. On success the store's snapshot is advanced so it may be persisted
// again after further appends.
func (r *Repository) Persist(ctx context.Context, h *HistoryStore) error {
	if h == nil || h.Suite == "" {
		return errors.New("cannot persist a store without a suite")
	}
	if err := h.checkOrder(); err != nil {
		return errors.Wrap(err, "refusing to persist unordered store")
	}

	doc, rev, err := r.LoadDocument(ctx)
	if err != nil {
		return errors.Wrapf(err, "reading current state of suite '%s'", h.Suite)
	}

	current, _ := doc.Entries.Get(h.Suite)
	if len(current) != h.base.count || maxDate(current) != h.base.lastUpdate {
		return &ConcurrentModificationError{
			Suite: h.Suite,
			Reason: fmt.Sprintf("loaded %d entries up to %d, persisted state has %d entries up to %d",
				h.base.count, h.base.lastUpdate, len(current), maxDate(current)),
		}
	}
	if rev != h.base.revision {
		grip.Debug(message.Fields{
			"message":  "document changed outside this suite since load",
			"suite":    h.Suite,
			"loaded":   h.base.revision,
			"current":  rev,
			"repo_url": r.repoURL,
		})
	}

	doc.Entries.Set(h.Suite, h.Entries)
	if doc.RepoURL == "" {
		doc.RepoURL = r.repoURL
	}
	doc.LastUpdate = documentLastUpdate(doc, utility.UnixMilli(r.now()))

	data, err := doc.Encode(r.backend.Format())
	if err != nil {
		return errors.WithStack(err)
	}

	newRev, err := r.backend.Write(ctx, data, rev)
	if err == ErrRevisionMismatch {
		return &ConcurrentModificationError{
			Suite:  h.Suite,
			Reason: "document was rewritten while persisting",
		}
	}
	if err != nil {
		return errors.Wrapf(err, "writing suite '%s'", h.Suite)
	}

	grip.Info(message.Fields{
		"message":     "persisted benchmark suite",
		"suite":       h.Suite,
		"entries":     len(h.Entries),
		"last_update": h.LastUpdate,
		"revision":    newRev,
	})

	h.base = snapshot{count: len(h.Entries), lastUpdate: h.LastUpdate, revision: newRev}
	return nil
}

// documentLastUpdate is the write time, never earlier than any suite.
func documentLastUpdate(doc *Document, now int64) int64 {
	out := now
	if doc.LastUpdate > out {
		out = doc.LastUpdate
	}
	for _, name := range doc.Entries.Names() {
		entries, _ := doc.Entries.Get(name)
		if last := maxDate(entries); last > out {
			out = last
		}
	}
	return out
}
