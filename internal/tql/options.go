package tql

import (
	"github.com/avoiney/oppy/pkg/logger"
)

type options struct {
	lenient   bool
	onIllegal IllegalFunc
}

// Option configures lexing and parsing.
type Option func(*options)

// WithLenient makes the lexer skip characters it cannot use instead of
// failing the query.
func WithLenient(lenient bool) Option {
	return func(o *options) {
		o.lenient = lenient
	}
}

// WithIllegalHandler replaces the default warning logged for each skipped
// character in lenient mode.
func WithIllegalHandler(fn IllegalFunc) Option {
	return func(o *options) {
		o.onIllegal = fn
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.lenient && o.onIllegal == nil {
		log := logger.WithComponent("tql")
		o.onIllegal = func(ch rune, line, column int) {
			log.Warn("illegal character skipped", "char", string(ch), "line", line, "column", column)
		}
	}
	return o
}
