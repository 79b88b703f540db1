// Package zstdcodec wraps another codec with zstd compression.
package zstdcodec

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
	"github.com/wippyai/docmap/errors"
)

// DefaultMaxSize caps the decompressed size of a single payload.
const DefaultMaxSize = 64 << 20

// Codec compresses the output of an inner codec.
type Codec struct {
	inner   codec.Codec
	level   zstd.EncoderLevel
	maxSize uint64

	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

var _ codec.Codec = &Codec{}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the compression level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// WithMaxSize caps the decompressed payload size.
func WithMaxSize(n uint64) Option {
	return func(c *Codec) {
		c.maxSize = n
	}
}

// New wraps inner.
func New(inner codec.Codec, opts ...Option) *Codec {
	c := &Codec{
		inner:   inner,
		level:   zstd.SpeedDefault,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Name() string        { return c.inner.Name() + "+zstd" }
func (c *Codec) ContentType() string { return c.inner.ContentType() + "+zstd" }

// Inner returns the wrapped codec.
func (c *Codec) Inner() codec.Codec { return c.inner }

// init builds the shared encoder and decoder. Both are safe for concurrent
// EncodeAll and DecodeAll calls.
func (c *Codec) init() error {
	c.once.Do(func() {
		c.enc, c.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
		if c.err != nil {
			return
		}
		c.dec, c.err = zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(c.maxSize),
			zstd.WithDecoderConcurrency(0))
	})
	if c.err != nil {
		return errors.Wrap(errors.PhaseCodec, errors.KindInvalidInput, c.err, "zstd setup")
	}
	return nil
}

// Encode serializes doc with the inner codec and compresses the result.
func (c *Codec) Encode(doc *docmap.Document) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	raw, err := c.inner.Encode(doc)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode decompresses data and parses it with the inner codec.
func (c *Codec) Decode(data []byte) (*docmap.Document, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, codec.Malformed(c.Name(), err)
	}
	return c.inner.Decode(raw)
}

// Close releases the decoder's resources.
func (c *Codec) Close() {
	if c.dec != nil {
		c.dec.Close()
	}
}

// IsCompressed reports whether data starts with the zstd frame magic.
func IsCompressed(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x28 && data[1] == 0xB5 && data[2] == 0x2F && data[3] == 0xFD
}
