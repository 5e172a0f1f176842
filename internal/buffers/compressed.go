package buffers

import (
	"bufio"
	"fmt"
	"io"

	"github.com/garethgeorge/kmerge/internal/poolutil"
	"github.com/klauspost/compress/zstd"
)

const bufioSize = 64 * 1024

// Decoders are expensive to create and a merge opens one reader per run.
var decoderPool = poolutil.NewPool(func() *zstd.Decoder {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("create zstd decoder: %v", err)) // only fails on invalid options
	}
	return dec
}, func(dec *zstd.Decoder) *zstd.Decoder {
	_ = dec.Reset(nil) // drop the reference to the previous stream
	return dec
}, 32)

// compressedBufferFactory is a BufferFactory that compresses data.
type compressedBufferFactory struct {
	baseFactory BufferFactory
}

func NewCompressedBufferFactory(baseFactory BufferFactory) BufferFactory {
	return &compressedBufferFactory{baseFactory: baseFactory}
}

var _ BufferFactory = (*compressedBufferFactory)(nil)

func (f *compressedBufferFactory) New() (BufferHandle, error) {
	baseHandle, err := f.baseFactory.New()
	if err != nil {
		return nil, err
	}
	return &compressedBufferHandle{base: baseHandle}, nil
}

func (f *compressedBufferFactory) Release() error {
	return f.baseFactory.Release()
}

// compressedBufferHandle is a BufferHandle that compresses data.
type compressedBufferHandle struct {
	base BufferHandle
}

func (h *compressedBufferHandle) Name() string {
	return "zstd+" + h.base.Name()
}

func (h *compressedBufferHandle) GetReader() (io.ReadCloser, error) {
	baseReader, err := h.base.GetReader()
	if err != nil {
		return nil, err
	}
	return NewDecompressingReader(baseReader)
}

func (h *compressedBufferHandle) GetWriter() (io.WriteCloser, error) {
	baseWriter, err := h.base.GetWriter()
	if err != nil {
		return nil, err
	}
	return NewCompressingWriter(baseWriter)
}

// NewDecompressingReader decodes the zstd stream r using a pooled decoder. Closing the returned
// reader returns the decoder to the pool and closes r.
func NewDecompressingReader(r io.ReadCloser) (io.ReadCloser, error) {
	dec := decoderPool.Get()
	if err := dec.Reset(r); err != nil {
		decoderPool.Put(dec)
		r.Close()
		return nil, fmt.Errorf("reset zstd decoder: %w", err)
	}
	return &readerCloseForwarder{
		closers: []func() error{func() error {
			decoderPool.Put(dec)
			return nil
		}, r.Close},
		Reader: bufio.NewReaderSize(dec, bufioSize),
	}, nil
}

// NewCompressingWriter zstd encodes into w. Closing the returned writer flushes the encoder and
// closes w.
func NewCompressingWriter(w io.WriteCloser) (io.WriteCloser, error) {
	bufioWriter := bufio.NewWriterSize(w, bufioSize)
	zstdWriter, err := zstd.NewWriter(
		bufioWriter,
		zstd.WithEncoderCRC(true),
		zstd.WithEncoderConcurrency(2),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		w.Close()
		return nil, err
	}
	return &writerCloseForwarder{
		closers:     []func() error{zstdWriter.Close, bufioWriter.Flush, w.Close},
		WriteCloser: zstdWriter,
	}, nil
}
