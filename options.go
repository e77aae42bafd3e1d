package pdfunlock

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

type runtimeConfig struct {
	source        moduleSource
	encoding      ModuleEncoding
	maxModuleSize uint64
	httpClient    *http.Client
	logger        logrus.FieldLogger
}

type Option func(*runtimeConfig)

// WithModuleBytes uses an in-memory (typically embedded) codec binary.
func WithModuleBytes(b []byte) Option {
	return func(c *runtimeConfig) { c.source = bytesSource{data: b} }
}

// WithModuleFile loads the codec binary from a local file at first use.
func WithModuleFile(path string) Option {
	return func(c *runtimeConfig) { c.source = fileSource{path: path} }
}

// WithModuleURL fetches the codec binary over HTTP at first use. The
// fetch happens once per Runtime; a failed fetch is reported as
// ErrCodecUnavailable and retried on the next call.
func WithModuleURL(url string) Option {
	return func(c *runtimeConfig) { c.source = urlSource{url: url} }
}

// WithModuleEncoding overrides encoding detection for the module binary.
func WithModuleEncoding(enc ModuleEncoding) Option {
	return func(c *runtimeConfig) { c.encoding = enc }
}

// WithMaxModuleSize caps the decompressed size of the module binary.
// Zero keeps the default of 256 MiB.
func WithMaxModuleSize(n uint64) Option {
	return func(c *runtimeConfig) { c.maxModuleSize = n }
}

// WithHTTPClient sets the client used by WithModuleURL.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *runtimeConfig) { c.httpClient = hc }
}

// WithLogger routes the runtime's diagnostics to l. The default logger
// discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *runtimeConfig) { c.logger = l }
}
