package pdfunlock

import "context"

// codec is the boundary surface the bridge and document session drive.
// The wazero-backed implementation lives in wasm.go; tests substitute an
// allocation-tracking fake.
//
// Pointer-typed values (buffer addresses, document handles) are offsets
// into the codec's linear memory or opaque guest values. A call error
// means the instance itself misbehaved (trap, detached memory) and the
// instance should be considered unusable.
type codec interface {
	malloc(ctx context.Context, size uint32) (uint32, error)
	free(ctx context.Context, ptr uint32) error

	// readMemory returns a host-owned copy, never a view: the region may
	// be freed or the linear memory grown right after the call.
	readMemory(ptr, size uint32) ([]byte, error)
	writeMemory(ptr uint32, data []byte) error

	initLibrary(ctx context.Context) error
	loadDocument(ctx context.Context, dataPtr, dataLen, passwordPtr uint32) (uint32, error)
	lastError(ctx context.Context) (codecError, error)
	pageCount(ctx context.Context, doc uint32) (int32, error)
	securityRevision(ctx context.Context, doc uint32) (int32, error)
	saveWithoutSecurity(ctx context.Context, doc, sinkPtr uint32) (bool, error)
	closeDocument(ctx context.Context, doc uint32) error

	close(ctx context.Context) error
}

// memoryReader is the slice of codec the write callback needs.
type memoryReader interface {
	readMemory(ptr, size uint32) ([]byte, error)
}
