// Package pdfunlock removes password protection from PDF documents by
// driving a native PDF codec compiled to WebAssembly. The document never
// leaves the process: input bytes are copied into the codec's linear
// memory, the codec re-serializes the document without its security
// handler, and the output is streamed back through a write-sink callback.
//
// # Overview
//
// A [Runtime] owns one instance of the codec module. The module binary is
// acquired lazily on first use from a configured source (embedded bytes, a
// local file, or a URL) and instantiated exactly once; concurrent first
// callers share a single load attempt. Document operations against the
// shared instance are serialized internally because the codec is not
// reentrant.
//
// # Basic Usage
//
//	rt := pdfunlock.New(pdfunlock.WithModuleFile("pdfcodec.wasm"))
//	defer rt.Close(context.Background())
//
//	out, err := rt.RemovePassword(ctx, input, "secret")
//	if errors.Is(err, pdfunlock.ErrPassword) {
//		// wrong or missing password: prompt and retry
//	}
//
// If the input document carries no protection, RemovePassword returns the
// input bytes unchanged and performs no save.
//
// # Errors
//
// Every failure wraps exactly one of the package's sentinel errors
// ([ErrCodecUnavailable], [ErrPassword], [ErrInvalidDocument],
// [ErrSaveFailed], [ErrOutOfMemory]); raw codec error codes never reach
// the caller. Only [ErrPassword] is worth retrying with different input.
//
// # Module Binary
//
// The codec binary may be stored or served compressed. Zstandard and LZ4
// payloads are recognized by their magic bytes; Brotli (the conventional
// wire encoding for .wasm) is recognized by a ".br" name suffix.
// Decompression is capped by a configurable size limit.
package pdfunlock
