package pdfunlock

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

// Fake document material. Encrypted inputs carry a marker prefix the fake
// codec recognizes; "decryption" swaps it for a plain header of the same
// length, so re-running removal on an output takes the unencrypted path.
var (
	encHeader   = []byte("%PDF-ENC")
	plainHeader = []byte("%PDF-1.7")
)

func encryptedPDF(body string) []byte { return append(append([]byte{}, encHeader...), body...) }
func plainPDF(body string) []byte     { return append(append([]byte{}, plainHeader...), body...) }

func decryptedCopy(data []byte) []byte {
	out := append([]byte{}, data...)
	copy(out, plainHeader)
	return out
}

type fakeDoc struct {
	dataPtr uint32
	data    []byte
	open    bool
}

// fakeCodec emulates the codec ABI over a flat in-memory heap with an
// allocation ledger, so tests can assert that every buffer is freed
// exactly once and that documents are closed before their backing bytes
// are freed.
type fakeCodec struct {
	mem    []byte
	next   uint32
	active map[uint32]uint32

	succAllocs int
	frees      int
	badFree    bool
	freeBeforeClose bool
	mallocFailAt    int // 1-based malloc ordinal that returns null; 0 never
	mallocCalls     int

	inited  bool
	lastErr codecError

	docs    map[uint32]*fakeDoc
	nextDoc uint32

	sinks *sinkTable

	password   string
	pages      int32
	plainOpens bool // unencrypted input opens fine with a negative revision
	failSave   bool
	chunkSizes []int

	openCalls, saveCalls, closeCalls int
}

func newFakeCodec(sinks *sinkTable) *fakeCodec {
	return &fakeCodec{
		mem:      make([]byte, 1<<16),
		next:     16,
		active:   map[uint32]uint32{},
		docs:     map[uint32]*fakeDoc{},
		nextDoc:  1,
		sinks:    sinks,
		password: "secret",
		pages:    10,
	}
}

func (f *fakeCodec) ensure(end uint32) {
	for uint32(len(f.mem)) < end {
		f.mem = append(f.mem, make([]byte, len(f.mem))...)
	}
}

// stage places guest-internal bytes (save chunks) outside the ledger.
func (f *fakeCodec) stage(data []byte) uint32 {
	ptr := f.next
	f.next += uint32(len(data)) + 8
	f.ensure(ptr + uint32(len(data)))
	copy(f.mem[ptr:], data)
	return ptr
}

func (f *fakeCodec) malloc(ctx context.Context, size uint32) (uint32, error) {
	f.mallocCalls++
	if f.mallocFailAt != 0 && f.mallocCalls == f.mallocFailAt {
		return 0, nil
	}
	ptr := f.next
	f.next += size + 8
	f.ensure(ptr + size)
	f.active[ptr] = size
	f.succAllocs++
	return ptr, nil
}

func (f *fakeCodec) free(ctx context.Context, ptr uint32) error {
	if _, ok := f.active[ptr]; !ok {
		f.badFree = true
		return fmt.Errorf("free of unowned pointer %#x", ptr)
	}
	for _, d := range f.docs {
		if d.open && d.dataPtr == ptr {
			f.freeBeforeClose = true
		}
	}
	delete(f.active, ptr)
	f.frees++
	return nil
}

func (f *fakeCodec) readMemory(ptr, size uint32) ([]byte, error) {
	if uint64(ptr)+uint64(size) > uint64(len(f.mem)) {
		return nil, fmt.Errorf("read out of range")
	}
	return append([]byte{}, f.mem[ptr:ptr+size]...), nil
}

func (f *fakeCodec) writeMemory(ptr uint32, data []byte) error {
	if uint64(ptr)+uint64(len(data)) > uint64(len(f.mem)) {
		return fmt.Errorf("write out of range")
	}
	copy(f.mem[ptr:], data)
	return nil
}

func (f *fakeCodec) initLibrary(ctx context.Context) error {
	f.inited = true
	return nil
}

func (f *fakeCodec) readCString(ptr uint32) string {
	end := ptr
	for end < uint32(len(f.mem)) && f.mem[end] != 0 {
		end++
	}
	return string(f.mem[ptr:end])
}

func (f *fakeCodec) loadDocument(ctx context.Context, dataPtr, dataLen, passwordPtr uint32) (uint32, error) {
	f.openCalls++
	data, err := f.readMemory(dataPtr, dataLen)
	if err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(data, encHeader) {
		if !f.plainOpens {
			f.lastErr = codeNone
			return 0, nil
		}
	} else {
		if passwordPtr == 0 {
			f.lastErr = codePassword
			return 0, nil
		}
		if f.readCString(passwordPtr) != f.password {
			f.lastErr = codePassword
			return 0, nil
		}
	}
	h := f.nextDoc
	f.nextDoc++
	f.docs[h] = &fakeDoc{dataPtr: dataPtr, data: data, open: true}
	f.lastErr = codeNone
	return h, nil
}

func (f *fakeCodec) lastError(ctx context.Context) (codecError, error) {
	return f.lastErr, nil
}

func (f *fakeCodec) pageCount(ctx context.Context, doc uint32) (int32, error) {
	return f.pages, nil
}

func (f *fakeCodec) securityRevision(ctx context.Context, doc uint32) (int32, error) {
	d := f.docs[doc]
	if d == nil {
		return 0, fmt.Errorf("unknown document %d", doc)
	}
	if bytes.HasPrefix(d.data, encHeader) {
		return 3, nil
	}
	return -1, nil
}

func (f *fakeCodec) saveWithoutSecurity(ctx context.Context, doc, sinkPtr uint32) (bool, error) {
	f.saveCalls++
	if f.failSave {
		return false, nil
	}
	d := f.docs[doc]
	if d == nil || !d.open {
		return false, fmt.Errorf("save on closed document %d", doc)
	}
	out := decryptedCopy(d.data)
	sizes := f.chunkSizes
	if len(sizes) == 0 {
		sizes = []int{len(out)}
	}
	off := 0
	for _, n := range sizes {
		if off+n > len(out) {
			n = len(out) - off
		}
		ptr := f.stage(out[off : off+n])
		if f.sinks.deliver(f, sinkPtr, ptr, uint32(n)) == 0 {
			return false, nil
		}
		off += n
	}
	if off < len(out) {
		ptr := f.stage(out[off:])
		if f.sinks.deliver(f, sinkPtr, ptr, uint32(len(out)-off)) == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeCodec) closeDocument(ctx context.Context, doc uint32) error {
	f.closeCalls++
	d := f.docs[doc]
	if d == nil || !d.open {
		return fmt.Errorf("close of unopened document %d", doc)
	}
	d.open = false
	return nil
}

func (f *fakeCodec) close(ctx context.Context) error { return nil }

// checkBalanced asserts the resource invariants after one or more calls:
// every successful allocation freed exactly once, no foreign frees, and
// no document backing freed while the document was still open.
func (f *fakeCodec) checkBalanced(t *testing.T) {
	t.Helper()
	if f.succAllocs != f.frees {
		t.Errorf("unbalanced codec memory: %d allocs, %d frees", f.succAllocs, f.frees)
	}
	if f.badFree {
		t.Error("free of an unowned or already-freed pointer")
	}
	if f.freeBeforeClose {
		t.Error("document backing buffer freed before the document was closed")
	}
}
