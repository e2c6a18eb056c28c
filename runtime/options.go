package runtime

import (
	"github.com/second-state/WasmEdge-go/wasmedge"
	"go.uber.org/zap"
)

// Option configures a Context or a Runner.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	maxMemoryPages uint
}

// WithLogger sets the logger used instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxMemoryPages caps linear memory growth, in 64KiB pages.
// Zero keeps the WasmEdge default.
func WithMaxMemoryPages(pages uint) Option {
	return func(o *options) { o.maxMemoryPages = pages }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	return o
}

// newConfigure creates the WasmEdge configuration shared by both call paths.
// No host registrations are enabled: modules with imports fail to register.
func (o options) newConfigure() *wasmedge.Configure {
	conf := wasmedge.NewConfigure()
	if conf == nil {
		return nil
	}
	if o.maxMemoryPages > 0 {
		conf.SetMaxMemoryPage(o.maxMemoryPages)
	}
	return conf
}
