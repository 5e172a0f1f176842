package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/garethgeorge/kmerge/internal/buffers"
	"github.com/garethgeorge/kmerge/internal/merge"
	"github.com/garethgeorge/kmerge/internal/objstore"
	"github.com/garethgeorge/kmerge/internal/runfile"
)

// resolver turns command line paths into run sources. Local paths ending in .zst are
// decompressed. s3://bucket/prefix/ expands to every object under the prefix.
type resolver struct {
	region string
	svc    objstore.S3Service
	stores map[string]*objstore.Store
}

func newResolver(region string) *resolver {
	return &resolver{region: region, stores: make(map[string]*objstore.Store)}
}

func isS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

func (r *resolver) store(ctx context.Context, bucket string) (*objstore.Store, error) {
	if s, ok := r.stores[bucket]; ok {
		return s, nil
	}
	if r.svc == nil {
		svc, err := newS3Service(ctx, r.region)
		if err != nil {
			return nil, fmt.Errorf("connect to s3: %w", err)
		}
		r.svc = svc
	}
	s := objstore.NewStore(r.svc, bucket)
	r.stores[bucket] = s
	return s, nil
}

// expand returns the run paths named by args in order.
func (r *resolver) expand(ctx context.Context, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !isS3(arg) {
			paths = append(paths, arg)
			continue
		}
		bucket, key, err := objstore.ParseURI(arg)
		if err != nil {
			return nil, err
		}
		if key != "" && !strings.HasSuffix(key, "/") {
			paths = append(paths, arg)
			continue
		}
		s, err := r.store(ctx, bucket)
		if err != nil {
			return nil, err
		}
		keys, err := s.ListRuns(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("no runs under %s", arg)
		}
		for _, k := range keys {
			paths = append(paths, "s3://"+bucket+"/"+k)
		}
	}
	return paths, nil
}

// source returns a lazily opened source for a single run path.
func (r *resolver) source(ctx context.Context, path string) (merge.Source[[]byte, []byte], error) {
	if !isS3(path) {
		return runfile.LazySource(func(context.Context) (*runfile.Reader, error) {
			return openFile(path)
		}), nil
	}
	bucket, key, err := objstore.ParseURI(path)
	if err != nil {
		return nil, err
	}
	s, err := r.store(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return s.Source(key), nil
}

func (r *resolver) sources(ctx context.Context, args []string) ([]merge.Source[[]byte, []byte], []string, error) {
	paths, err := r.expand(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	sources := make([]merge.Source[[]byte, []byte], 0, len(paths))
	for _, path := range paths {
		src, err := r.source(ctx, path)
		if err != nil {
			for _, s := range sources {
				s.Close()
			}
			return nil, nil, err
		}
		sources = append(sources, src)
	}
	return sources, paths, nil
}

func openFile(path string) (*runfile.Reader, error) {
	rc, err := buffers.BufferHandleFromFile(path).GetReader()
	if err != nil {
		return nil, err
	}
	rd, err := runfile.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("read run %s: %w", path, err)
	}
	return rd, nil
}
