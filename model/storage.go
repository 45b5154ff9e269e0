package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Revision is an opaque token identifying one persisted version of a
// document. The empty revision means the document does not exist yet.
type Revision string

var (
	// ErrDocumentNotFound is returned by Backend.Read when nothing has been
	// persisted yet.
	ErrDocumentNotFound = errors.New("benchmark document not found")
	// ErrRevisionMismatch is returned by Backend.Write when the persisted
	// revision is no longer the expected one.
	ErrRevisionMismatch = errors.New("benchmark document revision changed")
)

// Backend reads and conditionally writes the raw bytes of a benchmark
// document. Write must either replace the document completely or leave it
// untouched.
type Backend interface {
	// Read returns the current document and its revision, or
	// ErrDocumentNotFound.
	Read(context.Context) ([]byte, Revision, error)
	// Write stores data if the current revision equals expected and
	// returns the new revision. Otherwise it returns ErrRevisionMismatch
	// and writes nothing.
	Write(ctx context.Context, data []byte, expected Revision) (Revision, error)
	// Format reports the representation the backend writes.
	Format() DocumentFormat
}

// contentRevision derives a revision from document bytes, for backends
// without native versioning.
func contentRevision(data []byte) Revision {
	sum := sha256.Sum256(data)
	return Revision(hex.EncodeToString(sum[:]))
}
