// Package buffers stores serialized runs in memory or on disk, optionally zstd compressed.
package buffers

import (
	"io"
	"strings"
)

// BufferHandle is a handle to a store of data that can be written once and read many times.
type BufferHandle interface {
	GetReader() (io.ReadCloser, error)
	GetWriter() (io.WriteCloser, error)
	Name() string
}

// BufferFactory creates BufferHandles and releases their storage when done.
type BufferFactory interface {
	New() (BufferHandle, error)
	Release() error
}

// CompressedSuffix marks files and objects holding zstd compressed runs.
const CompressedSuffix = ".zst"

// BufferHandleFromFile returns a handle for an existing file, decompressing it when the name
// ends with CompressedSuffix.
func BufferHandleFromFile(path string) BufferHandle {
	var handle BufferHandle = &fileBuffer{fpath: path}
	if strings.HasSuffix(path, CompressedSuffix) {
		handle = CompressedBufferHandle(handle)
	}
	return handle
}

func CompressedBufferHandle(base BufferHandle) BufferHandle {
	return &compressedBufferHandle{base: base}
}

func InMemoryBufferHandle(data []byte) BufferHandle {
	return &inMemoryBuffer{data: data}
}
