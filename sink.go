package pdfunlock

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// chunkSink collects the document emitted through the codec's write
// callback. Chunks are host-owned copies appended in arrival order;
// chunk boundaries are a codec implementation detail, so reassembly is a
// plain ordered concatenation.
type chunkSink struct {
	chunks [][]byte
	total  int
	failed bool
}

func (s *chunkSink) accept(data []byte) {
	s.chunks = append(s.chunks, data)
	s.total += len(data)
}

func (s *chunkSink) assemble() []byte {
	out := make([]byte, 0, s.total)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// sinkTable routes write-callback invocations to the sink registered for
// the save in flight. Keys are the ids written into sink records.
type sinkTable struct {
	mu     sync.Mutex
	nextID uint32
	sinks  map[uint32]*chunkSink
}

func newSinkTable() *sinkTable {
	return &sinkTable{nextID: 1, sinks: make(map[uint32]*chunkSink)}
}

func (t *sinkTable) register(s *chunkSink) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.sinks[id] = s
	return id
}

func (t *sinkTable) unregister(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sinks, id)
}

func (t *sinkTable) lookup(id uint32) *chunkSink {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sinks[id]
}

// deliver implements the codec's write-block contract:
// (sinkPtr, dataPtr, size) -> 1 accepted, 0 abort. The record at sinkPtr
// is validated, the chunk is copied out of codec memory before returning
// (the pointer is invalid afterwards), and any failure aborts the save so
// the codec cannot silently produce truncated output.
func (t *sinkTable) deliver(mem memoryReader, sinkPtr, dataPtr, size uint32) int32 {
	rec, err := mem.readMemory(sinkPtr, sinkRecordSize)
	if err != nil {
		return 0
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != sinkRecordVersion {
		return 0
	}
	sink := t.lookup(binary.LittleEndian.Uint32(rec[4:8]))
	if sink == nil {
		return 0
	}
	if size == 0 {
		return 1
	}
	data, err := mem.readMemory(dataPtr, size)
	if err != nil {
		sink.failed = true
		return 0
	}
	sink.accept(data)
	return 1
}

// encodeSinkRecord lays out the fixed record the codec understands: a
// version word followed by a word-sized slot holding the sink id.
func encodeSinkRecord(id uint32) [sinkRecordSize]byte {
	var rec [sinkRecordSize]byte
	binary.LittleEndian.PutUint32(rec[0:4], sinkRecordVersion)
	binary.LittleEndian.PutUint32(rec[4:8], id)
	return rec
}

// streamSave drives the codec's save-without-security operation through
// the write sink and reassembles the streamed output. The sink is
// unregistered and its record freed whether or not the save succeeds.
func streamSave(ctx context.Context, c codec, sinks *sinkTable, sess *documentSession) (out []byte, err error) {
	rec, err := allocateBuffer(ctx, c, sinkRecordSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := rec.release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()

	sink := &chunkSink{}
	id := sinks.register(sink)
	defer sinks.unregister(id)

	recBytes := encodeSinkRecord(id)
	if err := rec.writeBytes(ctx, recBytes[:]); err != nil {
		return nil, err
	}

	ok, err := c.saveWithoutSecurity(ctx, sess.handle, rec.pointer())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: codec rejected save", ErrSaveFailed)
	}
	if sink.failed {
		return nil, fmt.Errorf("%w: chunk copy failed", ErrSaveFailed)
	}
	return sink.assemble(), nil
}
