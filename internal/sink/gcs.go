package sink

// gcs.go implements the object-store sink. Object names derive from
// the input file's basename, so rewriting an identity overwrites the
// object. GCS object writes are atomic replacements, which gives the
// idempotency contract for free.

import (
	"context"
	"fmt"
	"path"

	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/record"

	"cloud.google.com/go/storage"
)

// GCSSink uploads per-file CSV artifacts to a bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	enc    crypt.Provider
}

// NewGCSSink wraps an authenticated storage client. prefix namespaces
// the objects within the bucket and may be empty.
func NewGCSSink(client *storage.Client, bucket, prefix string, enc crypt.Provider) *GCSSink {
	return &GCSSink{client: client, bucket: bucket, prefix: prefix, enc: enc}
}

// Write implements Sink.
func (s *GCSSink) Write(ctx context.Context, id ledger.FileIdentity, recs []record.Record) (Ack, error) {
	data, err := encodeCSV(recs, false, s.enc)
	if err != nil {
		return Ack{}, err
	}

	object := path.Join(s.prefix, destName(id))
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return Ack{}, fmt.Errorf("upload gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return Ack{}, fmt.Errorf("finalize gs://%s/%s: %w", s.bucket, object, err)
	}

	return Ack{
		Location: fmt.Sprintf("gs://%s/%s", s.bucket, object),
		Records:  len(recs),
	}, nil
}
