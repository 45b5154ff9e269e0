package model

import (
	"context"
	"strconv"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const defaultDocumentCollection = "benchmark_documents"

// MongoOptions describe where a MongoDB-backed document lives.
type MongoOptions struct {
	Database   string
	Collection string
	// Key is the _id of the document, typically the repository name.
	Key    string
	Format DocumentFormat
}

func (opts *MongoOptions) validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(opts.Database == "", "must specify a database name")
	catcher.NewWhen(opts.Key == "", "must specify a document key")
	if opts.Collection == "" {
		opts.Collection = defaultDocumentCollection
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	catcher.Add(opts.Format.Validate())
	return catcher.Resolve()
}

// storedDocument keeps the rendered document as an opaque string so the
// exact bytes read by the chart frontend survive the round trip.
type storedDocument struct {
	ID        string    `bson:"_id"`
	Revision  int64     `bson:"revision"`
	Format    string    `bson:"format"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoBackend struct {
	client *mongo.Client
	opts   MongoOptions
}

// NewMongoBackend stores the document in a MongoDB collection. Every write
// is conditioned on the integer revision read earlier, giving a true
// compare-and-swap.
func NewMongoBackend(client *mongo.Client, opts MongoOptions) (Backend, error) {
	if client == nil {
		return nil, errors.New("must specify a client")
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mongodb backend options")
	}
	return &mongoBackend{client: client, opts: opts}, nil
}

func (b *mongoBackend) Format() DocumentFormat { return b.opts.Format }

func (b *mongoBackend) collection() *mongo.Collection {
	return b.client.Database(b.opts.Database).Collection(b.opts.Collection)
}

func (b *mongoBackend) Read(ctx context.Context) ([]byte, Revision, error) {
	doc := storedDocument{}
	err := b.collection().FindOne(ctx, bson.M{"_id": b.opts.Key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, "", ErrDocumentNotFound
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "finding document '%s'", b.opts.Key)
	}

	return []byte(doc.Data), mongoRevision(doc.Revision), nil
}

func (b *mongoBackend) Write(ctx context.Context, data []byte, expected Revision) (Revision, error) {
	doc := storedDocument{
		ID:        b.opts.Key,
		Format:    string(b.opts.Format),
		Data:      string(data),
		UpdatedAt: time.Now(),
	}

	if expected == "" {
		doc.Revision = 1
		_, err := b.collection().InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrRevisionMismatch
		}
		if err != nil {
			return "", errors.Wrapf(err, "inserting document '%s'", b.opts.Key)
		}
		return mongoRevision(doc.Revision), nil
	}

	prev, err := strconv.ParseInt(string(expected), 10, 64)
	if err != nil {
		return "", errors.Wrapf(err, "invalid revision '%s'", expected)
	}
	doc.Revision = prev + 1

	res, err := b.collection().ReplaceOne(ctx, bson.M{"_id": b.opts.Key, "revision": prev}, doc)
	if err != nil {
		return "", errors.Wrapf(err, "replacing document '%s'", b.opts.Key)
	}
	grip.Debug(message.Fields{
		"message":  "replaced benchmark document",
		"key":      b.opts.Key,
		"revision": doc.Revision,
		"matched":  res.MatchedCount,
	})
	if res.MatchedCount == 0 {
		return "", ErrRevisionMismatch
	}

	return mongoRevision(doc.Revision), nil
}

func mongoRevision(rev int64) Revision {
	return Revision(strconv.FormatInt(rev, 10))
}
