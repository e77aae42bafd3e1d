package pdfunlock

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RemovePassword decrypts input with password and returns the document
// re-serialized without its security handler.
//
// If the document carries no protection, the input slice itself is
// returned unchanged and no save is attempted; the output therefore
// aliases the caller's buffer in that case.
//
// The call is serialized against other work on the same Runtime. ctx is
// honored between steps only: the native calls are synchronous and are
// never abandoned mid-flight, so a caller-level timeout should race the
// whole call and discard the result.
//
// Failures wrap ErrCodecUnavailable, ErrPassword, ErrInvalidDocument,
// ErrSaveFailed, or ErrOutOfMemory. Only ErrPassword is worth a retry.
func (r *Runtime) RemovePassword(ctx context.Context, input []byte, password string) ([]byte, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.ensureReady(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return removePassword(ctx, c, r.sinks, r.cfg.logger, input, password)
}

// removePassword is the single linear flow of one removal. Every native
// resource is released through a deferred guard so error paths cannot
// leak: defers run LIFO, which closes the document before the buffer
// holding its bytes is freed.
func removePassword(ctx context.Context, c codec, sinks *sinkTable, log logrus.FieldLogger, input []byte, password string) (out []byte, err error) {
	in, err := allocateBuffer(ctx, c, uint32(len(input)))
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := in.release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if err := in.writeBytes(ctx, input); err != nil {
		return nil, err
	}

	pw, err := marshalPassword(ctx, c, password)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := pw.release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()

	sess, err := openDocument(ctx, c, in, pw)
	if err != nil {
		if errors.Is(err, errNotEncrypted) {
			log.Debug("document not encrypted, returning input unchanged")
			return input, nil
		}
		return nil, err
	}
	defer func() {
		if cerr := sess.close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rev, err := sess.securityRevision(ctx)
	if err != nil {
		return nil, err
	}
	if rev < 0 {
		log.Debug("document has no security handler, returning input unchanged")
		return input, nil
	}

	if err := sess.validate(ctx); err != nil {
		return nil, err
	}

	out, err = streamSave(ctx, c, sinks, sess)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"input_bytes":  len(input),
		"output_bytes": len(out),
		"security_rev": rev,
	}).Info("password removed")
	return out, nil
}
