package ics

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileSink is whatever can hand a generated file to the user: a browser
// download, a directory on disk, a test recorder.
type FileSink interface {
	Offer(ctx context.Context, name, mimeType string, body []byte) error
}

// FileOfferError reports that a sink could not deliver a document.
type FileOfferError struct {
	Name string
	Err  error
}

func (e *FileOfferError) Error() string {
	return fmt.Sprintf("ics: offer %q: %v", e.Name, e.Err)
}

func (e *FileOfferError) Unwrap() error { return e.Err }

// Offer delivers doc through sink. Sink failures are returned as
// *FileOfferError.
func Offer(ctx context.Context, sink FileSink, doc Document) error {
	if sink == nil {
		return &FileOfferError{Name: doc.FileName, Err: errors.New("no file sink")}
	}
	if err := sink.Offer(ctx, doc.FileName, doc.MIMEType, doc.Body); err != nil {
		var fe *FileOfferError
		if errors.As(err, &fe) {
			return err
		}
		return &FileOfferError{Name: doc.FileName, Err: err}
	}
	return nil
}

// ResponseSink writes the document as an HTTP attachment.
type ResponseSink struct {
	W http.ResponseWriter
}

func (s ResponseSink) Offer(_ context.Context, name, mimeType string, body []byte) error {
	h := s.W.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	s.W.WriteHeader(http.StatusOK)
	_, err := s.W.Write(body)
	return err
}

// DirSink saves documents into a directory. Each file is written to a
// temp file first and renamed into place; the temp file is removed on
// every path where the rename did not happen.
type DirSink struct {
	Dir string

	// writeBody is swapped in tests.
	writeBody func(f *os.File, body []byte) error
}

// NewDirSink returns a sink that writes under dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

func (s *DirSink) Offer(ctx context.Context, name, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	write := s.writeBody
	if write == nil {
		write = func(f *os.File, b []byte) error {
			_, err := f.Write(b)
			return err
		}
	}

	tmp, err := os.CreateTemp(s.Dir, ".offer-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp, body); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.Dir, name)); err != nil {
		return err
	}
	renamed = true
	return nil
}

// MemorySink records offered documents.
type MemorySink struct {
	mu   sync.Mutex
	Docs []Document
	// Fail, when set, is returned from every Offer.
	Fail error
}

func (s *MemorySink) Offer(_ context.Context, name, mimeType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.Docs = append(s.Docs, Document{FileName: name, MIMEType: mimeType, Body: append([]byte(nil), body...)})
	return nil
}
