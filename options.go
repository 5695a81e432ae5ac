package canvas

import (
	"log/slog"

	"github.com/idncsk/canvas/codec"
	"github.com/idncsk/canvas/layer"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	rootLayer        *layer.Layer
	bitmapCacheSize  int
	firstOID         uint32
	autoCreateSets   bool
}

// Option configures Open behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec used for persisted records.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithRootLayer overrides the layer the context tree's root is bound to.
// The default root is the universe layer with identifier "/".
func WithRootLayer(l *layer.Layer) Option {
	return func(o *options) {
		o.rootLayer = l
	}
}

// WithBitmapCacheSize sets the per-store LRU capacity for decoded
// bitmaps. Values <= 0 keep the default.
func WithBitmapCacheSize(n int) Option {
	return func(o *options) {
		o.bitmapCacheSize = n
	}
}

// WithFirstOID overrides the first object identifier handed out to
// documents. Values below docindex.FirstOID keep the default.
func WithFirstOID(oid uint32) Option {
	return func(o *options) {
		o.firstOID = oid
	}
}

// WithAutoCreateSets controls whether ticking an unknown context or
// feature set creates it on the fly. Enabled by default; disabling it
// makes set creation explicit.
func WithAutoCreateSets(enabled bool) Option {
	return func(o *options) {
		o.autoCreateSets = enabled
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &canvas.BasicMetricsCollector{}
//	db, _ := canvas.Open(ctx, provider, canvas.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := canvas.NewJSONLogger(slog.LevelInfo)
//	db, _ := canvas.Open(ctx, provider, canvas.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		autoCreateSets:   true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
