package pdfunlock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runtime owns one instance of the codec module. The zero value is not
// usable; construct with New. A Runtime is safe for concurrent use: the
// codec is not reentrant, so document operations are serialized
// internally.
type Runtime struct {
	cfg   runtimeConfig
	sinks *sinkTable

	// mu serializes initialization and all document-session work against
	// the shared codec instance.
	mu sync.Mutex
	c  codec
}

// New returns a Runtime that loads the codec module lazily on first use.
// A module source option (WithModuleBytes, WithModuleFile, WithModuleURL)
// is required before the first call.
func New(opts ...Option) *Runtime {
	cfg := runtimeConfig{
		encoding:      EncodingAuto,
		maxModuleSize: defaultMaxModuleSize,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxModuleSize == 0 {
		cfg.maxModuleSize = defaultMaxModuleSize
	}
	if cfg.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.logger = l
	}
	return &Runtime{cfg: cfg, sinks: newSinkTable()}
}

// ensureReady loads, instantiates, and initializes the codec exactly
// once. Callers must hold r.mu, which gives concurrent first callers a
// single shared attempt. A failed attempt leaves the runtime unloaded so
// a later call can retry; it is never retried automatically.
func (r *Runtime) ensureReady(ctx context.Context) (codec, error) {
	if r.c != nil {
		return r.c, nil
	}
	if r.cfg.source == nil {
		return nil, fmt.Errorf("%w: no module source configured", ErrCodecUnavailable)
	}
	start := time.Now()
	raw, name, err := r.cfg.source.fetch(ctx, r.cfg.httpClient)
	if err != nil {
		return nil, err
	}
	binary, err := decodeModule(raw, name, r.cfg.encoding, r.cfg.maxModuleSize)
	if err != nil {
		return nil, err
	}
	c, err := instantiateCodec(ctx, binary, r.sinks)
	if err != nil {
		return nil, err
	}
	if err := c.initLibrary(ctx); err != nil {
		_ = c.close(ctx)
		return nil, fmt.Errorf("%w: extension init: %v", ErrCodecUnavailable, err)
	}
	r.cfg.logger.WithFields(logrus.Fields{
		"module_bytes": len(binary),
		"elapsed":      time.Since(start),
	}).Info("codec module ready")
	r.c = c
	return c, nil
}

// Close releases the codec instance. The Runtime may be used again
// afterwards; the next call reloads the module.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return nil
	}
	err := r.c.close(ctx)
	r.c = nil
	return err
}
