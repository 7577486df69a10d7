package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrSinkClosed is returned by AppendLine after Close.
var ErrSinkClosed = errors.New("overflow file closed")

// OverflowFile implements ports.OverflowSink as an append-only text file.
// Each event becomes one line, written verbatim.
type OverflowFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenOverflowFile opens path for appending, creating it and its directory
// when missing.
func OpenOverflowFile(path string) (*OverflowFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create overflow dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open overflow file: %w", err)
	}
	return &OverflowFile{path: path, f: f}, nil
}

// AppendLine writes line followed by a newline in a single write.
func (o *OverflowFile) AppendLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return ErrSinkClosed
	}
	_, err := o.f.Write(buf)
	return err
}

// Path returns the file path.
func (o *OverflowFile) Path() string {
	return o.path
}

// Close closes the file. Safe to call multiple times.
func (o *OverflowFile) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	return err
}
