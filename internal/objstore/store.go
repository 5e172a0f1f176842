// Package objstore keeps runs as objects in an S3 bucket.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/garethgeorge/kmerge/internal/buffers"
	"github.com/garethgeorge/kmerge/internal/ioutil"
	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/garethgeorge/kmerge/internal/runfile"
)

var ErrNotFound = errors.New("object not found")

// ParseURI splits s3://bucket/key into bucket and key. The key may be empty.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("S3 path must include bucket: %s", uri)
	}
	return bucket, key, nil
}

// Store reads and writes runs in one bucket. Keys ending in buffers.CompressedSuffix hold zstd
// compressed runs.
type Store struct {
	s3       S3Service
	bucket   string
	pageSize int32
}

type Option = func(*Store)

// WithListPageSize limits the number of keys fetched per list request. Zero uses the service
// default.
func WithListPageSize(n int32) func(*Store) {
	return func(s *Store) {
		s.pageSize = n
	}
}

func NewStore(s3 S3Service, bucket string, opts ...func(*Store)) *Store {
	s := &Store{s3: s3, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Bucket() string {
	return s.bucket
}

// PutRun writes the records of seq, which must be sorted by key, to key.
func (s *Store) PutRun(ctx context.Context, key string, seq iter.Seq2[[]byte, []byte]) (uint64, error) {
	var buf bytes.Buffer
	sink := ioutil.WithWriterCloser(&buf, ioutil.NopCloser)
	if strings.HasSuffix(key, buffers.CompressedSuffix) {
		zw, err := buffers.NewCompressingWriter(sink)
		if err != nil {
			return 0, fmt.Errorf("compress run %s: %w", key, err)
		}
		sink = zw
	}

	w, err := runfile.NewWriter(sink)
	if err != nil {
		return 0, err
	}
	for k, v := range seq {
		if err := w.Write(k, v); err != nil {
			return 0, fmt.Errorf("write run %s: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	if err := sink.Close(); err != nil {
		return 0, fmt.Errorf("write run %s: %w", key, err)
	}

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	return w.Count(), nil
}

// ListRuns returns the keys under prefix in lexical order.
func (s *Store) ListRuns(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		}
		if s.pageSize > 0 {
			input.MaxKeys = aws.Int32(s.pageSize)
		}
		out, err := s.s3.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// Source returns a merge source over the run at key. The object is fetched on the first pull.
func (s *Store) Source(key string) merge.Source[[]byte, []byte] {
	return runfile.LazySource(func(ctx context.Context) (*runfile.Reader, error) {
		return s.open(ctx, key)
	})
}

func (s *Store) open(ctx context.Context, key string) (*runfile.Reader, error) {
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("failed reading key %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	body := out.Body
	if strings.HasSuffix(key, buffers.CompressedSuffix) {
		body, err = buffers.NewDecompressingReader(body)
		if err != nil {
			return nil, fmt.Errorf("read run %s: %w", key, err)
		}
	}
	rd, err := runfile.NewReader(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("read run %s: %w", key, err)
	}
	return rd, nil
}
