package pdfunlock

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// wasmCodec runs the codec module under wazero and adapts its C-style
// exports to the codec interface.
type wasmCodec struct {
	runtime wazero.Runtime
	module  api.Module

	fnMalloc    api.Function
	fnFree      api.Function
	fnInit      api.Function
	fnLoad      api.Function
	fnLastError api.Function
	fnPageCount api.Function
	fnSecRev    api.Function
	fnSave      api.Function
	fnClose     api.Function
}

// instantiateCodec is a function variable so runtime tests can substitute
// a fake without a real module binary.
var instantiateCodec = newWASMCodec

// newWASMCodec compiles and instantiates the codec binary, exporting the
// write-block host function the module imports for streaming saves.
func newWASMCodec(ctx context.Context, binary []byte, sinks *sinkTable) (codec, error) {
	r := wazero.NewRuntime(ctx)

	writeBlock := func(ctx context.Context, mod api.Module, sinkPtr, dataPtr, size uint32) int32 {
		return sinks.deliver(moduleMemory{mod}, sinkPtr, dataPtr, size)
	}
	if _, err := r.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().WithFunc(writeBlock).Export(hostWriteBlockFunction).
		Instantiate(ctx); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("%w: host module: %v", ErrCodecUnavailable, err)
	}
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("%w: compile: %v", ErrCodecUnavailable, err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("pdfcodec").
		WithStartFunctions("_initialize"))
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("%w: instantiate: %v", ErrCodecUnavailable, err)
	}

	c := &wasmCodec{runtime: r, module: mod}
	for _, e := range []struct {
		name string
		fn   *api.Function
	}{
		{exportMalloc, &c.fnMalloc},
		{exportFree, &c.fnFree},
		{exportInitLibrary, &c.fnInit},
		{exportLoadMemDocument, &c.fnLoad},
		{exportGetLastError, &c.fnLastError},
		{exportGetPageCount, &c.fnPageCount},
		{exportGetSecurityRev, &c.fnSecRev},
		{exportSaveWithoutSec, &c.fnSave},
		{exportCloseDocument, &c.fnClose},
	} {
		f := mod.ExportedFunction(e.name)
		if f == nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("%w: module does not export %q", ErrCodecUnavailable, e.name)
		}
		*e.fn = f
	}
	return c, nil
}

// moduleMemory adapts a module's linear memory for the write callback.
type moduleMemory struct{ mod api.Module }

func (m moduleMemory) readMemory(ptr, size uint32) ([]byte, error) {
	b, ok := m.mod.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("read of %d bytes at %#x out of range", size, ptr)
	}
	// Read returns a view into linear memory; copy before it can move.
	return bytes.Clone(b), nil
}

func (c *wasmCodec) malloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := c.fnMalloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wasmCodec) free(ctx context.Context, ptr uint32) error {
	_, err := c.fnFree.Call(ctx, uint64(ptr))
	return err
}

func (c *wasmCodec) readMemory(ptr, size uint32) ([]byte, error) {
	return moduleMemory{c.module}.readMemory(ptr, size)
}

func (c *wasmCodec) writeMemory(ptr uint32, data []byte) error {
	if !c.module.Memory().Write(ptr, data) {
		return fmt.Errorf("write of %d bytes at %#x out of range", len(data), ptr)
	}
	return nil
}

func (c *wasmCodec) initLibrary(ctx context.Context) error {
	_, err := c.fnInit.Call(ctx)
	return err
}

func (c *wasmCodec) loadDocument(ctx context.Context, dataPtr, dataLen, passwordPtr uint32) (uint32, error) {
	res, err := c.fnLoad.Call(ctx, uint64(dataPtr), uint64(dataLen), uint64(passwordPtr))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (c *wasmCodec) lastError(ctx context.Context) (codecError, error) {
	res, err := c.fnLastError.Call(ctx)
	if err != nil {
		return 0, err
	}
	return codecError(uint32(res[0])), nil
}

func (c *wasmCodec) pageCount(ctx context.Context, doc uint32) (int32, error) {
	res, err := c.fnPageCount.Call(ctx, uint64(doc))
	if err != nil {
		return 0, err
	}
	return int32(uint32(res[0])), nil
}

func (c *wasmCodec) securityRevision(ctx context.Context, doc uint32) (int32, error) {
	res, err := c.fnSecRev.Call(ctx, uint64(doc))
	if err != nil {
		return 0, err
	}
	return int32(uint32(res[0])), nil
}

func (c *wasmCodec) saveWithoutSecurity(ctx context.Context, doc, sinkPtr uint32) (bool, error) {
	res, err := c.fnSave.Call(ctx, uint64(doc), uint64(sinkPtr))
	if err != nil {
		return false, err
	}
	return uint32(res[0]) != 0, nil
}

func (c *wasmCodec) closeDocument(ctx context.Context, doc uint32) error {
	_, err := c.fnClose.Call(ctx, uint64(doc))
	return err
}

func (c *wasmCodec) close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}
