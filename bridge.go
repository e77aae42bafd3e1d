package pdfunlock

import (
	"context"
	"fmt"
)

// nativeBuffer is a region of codec linear memory owned by exactly one
// step of an operation. The codec's free is not idempotent, so the guard
// tracks release state and issues at most one free no matter how many
// times release runs.
type nativeBuffer struct {
	c        codec
	ptr      uint32
	size     uint32
	released bool
}

func allocateBuffer(ctx context.Context, c codec, size uint32) (*nativeBuffer, error) {
	ptr, err := c.malloc(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("%w: malloc: %v", ErrCodecUnavailable, err)
	}
	if ptr == 0 {
		return nil, fmt.Errorf("%w: allocating %d bytes", ErrOutOfMemory, size)
	}
	return &nativeBuffer{c: c, ptr: ptr, size: size}, nil
}

// writeBytes copies data into the buffer. len(data) must not exceed the
// allocated size.
func (b *nativeBuffer) writeBytes(ctx context.Context, data []byte) error {
	if uint32(len(data)) > b.size {
		return fmt.Errorf("%w: write of %d bytes into %d-byte buffer", ErrCodecUnavailable, len(data), b.size)
	}
	if err := b.c.writeMemory(b.ptr, data); err != nil {
		return fmt.Errorf("%w: memory write: %v", ErrCodecUnavailable, err)
	}
	return nil
}

// release frees the buffer. Safe to call more than once and on a nil
// buffer; the codec sees exactly one free.
func (b *nativeBuffer) release(ctx context.Context) error {
	if b == nil || b.released {
		return nil
	}
	b.released = true
	if err := b.c.free(ctx, b.ptr); err != nil {
		return fmt.Errorf("%w: free: %v", ErrCodecUnavailable, err)
	}
	return nil
}

// pointer returns the buffer's address, or 0 for a nil buffer.
func (b *nativeBuffer) pointer() uint32 {
	if b == nil {
		return 0
	}
	return b.ptr
}

// marshalPassword copies password into codec memory as a NUL-terminated
// string and returns the owning buffer. An empty password yields a nil
// buffer, which marshals as a null argument: the codec distinguishes "no
// password supplied" from an empty-string password, and only the former
// takes the unencrypted short-circuit path.
func marshalPassword(ctx context.Context, c codec, password string) (*nativeBuffer, error) {
	if password == "" {
		return nil, nil
	}
	buf, err := allocateBuffer(ctx, c, uint32(len(password))+1)
	if err != nil {
		return nil, err
	}
	if err := buf.writeBytes(ctx, append([]byte(password), 0)); err != nil {
		_ = buf.release(ctx)
		return nil, err
	}
	return buf, nil
}
