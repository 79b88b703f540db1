package natsstore

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/docmap/codec"
	"github.com/wippyai/docmap/codec/msgpackcodec"
)

type options struct {
	prefix  string
	timeout time.Duration
	codec   codec.Codec
	logger  *zap.Logger
}

// Option configures a Store or Server. Both sides of a connection must use
// the same prefix and codec.
type Option func(*options)

// WithSubjectPrefix sets the subject namespace.
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTimeout bounds requests whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCodec sets the codec documents travel in.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		prefix:  DefaultSubjectPrefix,
		timeout: DefaultTimeout,
		codec:   msgpackcodec.New(),
		logger:  Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
