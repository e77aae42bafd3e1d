package pdfunlock

import (
	"context"
	"errors"
	"fmt"
)

// errNotEncrypted marks the open-failure branch where the codec reports
// no real error: the document was never protected. Internal only; the
// orchestrator turns it into an unchanged-input return.
var errNotEncrypted = errors.New("document not encrypted")

type sessionState uint8

const (
	stateUnopened sessionState = iota
	stateOpen
	stateClosed
)

// documentSession owns one open document handle and walks the
// Unopened -> Open -> Closed lifecycle. close must run on every path out
// of Open, and always before the buffer holding the document bytes is
// freed.
type documentSession struct {
	c      codec
	handle uint32
	state  sessionState
}

// openDocument loads a document from the bytes held in in, unlocking with
// the marshaled password (nil for none). On failure the codec's last
// error is translated immediately; raw codes never leave this function.
func openDocument(ctx context.Context, c codec, in, pw *nativeBuffer) (*documentSession, error) {
	handle, err := c.loadDocument(ctx, in.pointer(), in.size, pw.pointer())
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrCodecUnavailable, err)
	}
	if handle == 0 {
		code, cerr := c.lastError(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("%w: last-error query: %v", ErrCodecUnavailable, cerr)
		}
		return nil, translateOpenError(code)
	}
	return &documentSession{c: c, handle: handle, state: stateOpen}, nil
}

func translateOpenError(code codecError) error {
	switch code {
	case codeNone, codeUnknown:
		// Open failed but the codec recorded nothing actionable: the
		// document is not actually encrypted.
		return errNotEncrypted
	case codePassword:
		return ErrPassword
	case codeFile:
		return fmt.Errorf("%w: unrecoverable file error", ErrInvalidDocument)
	case codeFormat:
		return fmt.Errorf("%w: malformed document", ErrInvalidDocument)
	case codeSecurity:
		return fmt.Errorf("%w: unsupported security scheme", ErrInvalidDocument)
	case codePage:
		return fmt.Errorf("%w: page failure", ErrInvalidDocument)
	default:
		return fmt.Errorf("%w: codec error %d", ErrInvalidDocument, code)
	}
}

// securityRevision reports the document's security handler revision. A
// negative revision means the document carries no protection.
func (s *documentSession) securityRevision(ctx context.Context) (int32, error) {
	if s.state != stateOpen {
		return 0, fmt.Errorf("%w: session not open", ErrInvalidDocument)
	}
	rev, err := s.c.securityRevision(ctx, s.handle)
	if err != nil {
		return 0, fmt.Errorf("%w: security revision: %v", ErrCodecUnavailable, err)
	}
	return rev, nil
}

// validate runs the mandatory pre-save sanity check: an open document
// must report at least one page.
func (s *documentSession) validate(ctx context.Context) error {
	if s.state != stateOpen {
		return fmt.Errorf("%w: session not open", ErrInvalidDocument)
	}
	n, err := s.c.pageCount(ctx, s.handle)
	if err != nil {
		return fmt.Errorf("%w: page count: %v", ErrCodecUnavailable, err)
	}
	if n <= 0 {
		return fmt.Errorf("%w: page count %d", ErrInvalidDocument, n)
	}
	return nil
}

// close releases the document handle. Closing twice is a no-op.
func (s *documentSession) close(ctx context.Context) error {
	if s == nil || s.state != stateOpen {
		return nil
	}
	s.state = stateClosed
	if err := s.c.closeDocument(ctx, s.handle); err != nil {
		return fmt.Errorf("%w: close document: %v", ErrCodecUnavailable, err)
	}
	return nil
}
