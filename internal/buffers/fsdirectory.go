package buffers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// global atomic counter for buffer IDs, means multiple dirBufferFactory instances
// can safely create buffers in the same directory without colliding.
var (
	nextFsBufID atomic.Int64
)

// dirBufferFactory stores each buffer as a file in dir and removes dir on Release.
type dirBufferFactory struct {
	dir string
}

func NewDirBufferFactory(dir string) (BufferFactory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create buffer dir: %w", err)
	}
	return &dirBufferFactory{dir: dir}, nil
}

func (d *dirBufferFactory) New() (BufferHandle, error) {
	id := nextFsBufID.Add(1)
	return &fileBuffer{fpath: filepath.Join(d.dir, fmt.Sprintf("%04d.run", id))}, nil
}

func (d *dirBufferFactory) Release() error {
	return os.RemoveAll(d.dir)
}

type fileBuffer struct {
	fpath string
}

func (f *fileBuffer) Name() string {
	return f.fpath
}

func (f *fileBuffer) GetWriter() (io.WriteCloser, error) {
	fh, err := os.OpenFile(f.fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return fh, nil
}

func (f *fileBuffer) GetReader() (io.ReadCloser, error) {
	fh, err := os.Open(f.fpath)
	if err != nil {
		return nil, err
	}
	return fh, nil
}
