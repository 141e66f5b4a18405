package storage

import (
	"context"
	"io"
)

// PutFunc is the primitive a pipeWriter commits through; in practice it is
// the backend's own Put.
type PutFunc func(ctx context.Context, key string, r io.Reader, opts *PutOptions) (*ObjectMetadata, error)

// NewPipeWriter adapts a Put primitive into a streaming ObjectWriter. Bytes
// written flow through an io.Pipe into the backend without buffering the
// whole payload in the writer; Close blocks until the put is durably
// committed and then exposes the final metadata.
func NewPipeWriter(ctx context.Context, key string, opts *PutOptions, put PutFunc) ObjectWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		meta, err := put(ctx, key, pr, opts)
		if err != nil {
			// unblocks a writer mid-Write with the real failure
			pr.CloseWithError(err)
			w.err = err
			return
		}
		pr.Close()
		w.meta = meta
	}()
	return w
}

type pipeWriter struct {
	pw     *io.PipeWriter
	done   chan struct{}
	meta   *ObjectMetadata
	err    error
	closed bool
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *pipeWriter) Close() error {
	if w.closed {
		<-w.done
		return w.err
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		return err
	}
	<-w.done
	return w.err
}

func (w *pipeWriter) Metadata() (*ObjectMetadata, error) {
	if !w.closed {
		return nil, NewError(CodeInternal, "")
	}
	<-w.done
	if w.err != nil {
		return nil, w.err
	}
	return w.meta, nil
}
