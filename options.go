package videoseg

import (
	"log/slog"

	"github.com/hupe1980/videoseg/blobstore"
	"github.com/hupe1980/videoseg/codec"
	"github.com/hupe1980/videoseg/framestore"
	"github.com/hupe1980/videoseg/membank"
)

// CompressionType selects the compression applied to frame records in the
// slow tier.
type CompressionType = framestore.CompressionType

// Compression codecs for the slow tier.
const (
	CompressionNone = framestore.CompressionNone
	CompressionLZ4  = framestore.CompressionLZ4
	CompressionZstd = framestore.CompressionZstd
)

type options struct {
	codec            codec.Codec
	blobs            blobstore.BlobStore
	compression      CompressionType
	fastTierBytes    int64
	scoreRatePerSec  float64
	prefetch         int
	memoryWindow     int
	workers          int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for masklet exports.
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

// WithBlobStore configures the slow tier holding encoded frame records.
// Defaults to an in-memory store; use blobstore.NewLocalStore for long
// videos on disk, or the minio-backed store for S3-compatible storage.
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobs = bs
	}
}

// WithCompression configures the compression applied to frame records in
// the slow tier. Defaults to CompressionNone.
func WithCompression(ct CompressionType) Option {
	return func(o *options) {
		o.compression = ct
	}
}

// WithFastTierBudget caps the bytes of decoded frames resident in the fast
// tier. When the budget is exceeded, frames are evicted in LRU order and
// re-fetched from the slow tier on demand. 0 disables eviction.
func WithFastTierBudget(bytes int64) Option {
	return func(o *options) {
		o.fastTierBytes = bytes
	}
}

// WithScoreRateLimit caps scoring-function invocations per second. Use it
// when the scorer fronts a shared accelerator or remote service.
// 0 means unlimited.
func WithScoreRateLimit(perSec float64) Option {
	return func(o *options) {
		o.scoreRatePerSec = perSec
	}
}

// WithPrefetch sets the maximum number of concurrent background frame
// fetches used to warm the fast tier ahead of a propagation pass.
func WithPrefetch(n int) Option {
	return func(o *options) {
		o.prefetch = n
	}
}

// WithMemoryWindow sets the per-object memory retention window in frames.
// Older memory entries are pruned beyond the window; 0 disables pruning.
// The default is membank.DefaultWindow.
func WithMemoryWindow(frames int) Option {
	return func(o *options) {
		o.memoryWindow = frames
	}
}

// WithWorkers enables per-object parallel scoring with the given number of
// workers when the scorer is a scorer.Func. Batched scorers are invoked
// once per frame and ignore this setting.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &videoseg.BasicMetricsCollector{}
//	s, _ := videoseg.Open(ctx, src, sc, videoseg.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Steps: %d, Avg latency: %dns\n", stats.StepCount, stats.StepAvgNanos)
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
//	logger := videoseg.NewJSONLogger(slog.LevelInfo)
//	s, _ := videoseg.Open(ctx, src, sc, videoseg.WithLogger(logger))
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
		memoryWindow:     membank.DefaultWindow,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
